// Command author-creation-cron is a scheduled function that always fails,
// exercising job error handling.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/R3E-Network/bookstore_lambda/internal/app/jobs"
	"github.com/R3E-Network/bookstore_lambda/internal/serverless"
)

func main() {
	lambda.Start(serverless.JobFunction(jobs.AuthorCreationName))
}
