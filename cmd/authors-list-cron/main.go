// Command authors-list-cron is the scheduled function logging every author.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/R3E-Network/bookstore_lambda/internal/app/jobs"
	"github.com/R3E-Network/bookstore_lambda/internal/serverless"
)

func main() {
	lambda.Start(serverless.JobFunction(jobs.AuthorsListName))
}
