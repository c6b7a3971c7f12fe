// Command shop-http is the Lambda function serving /shops.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/R3E-Network/bookstore_lambda/internal/app"
	"github.com/R3E-Network/bookstore_lambda/internal/serverless"
)

func main() {
	lambda.Start(serverless.HTTPFunction(app.RouterShops))
}
