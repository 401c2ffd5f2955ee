// billing-enforcer - deletes DynamoDB tables using On-Demand billing.
// Runs as an AWS Lambda behind an EventBridge rule on CloudTrail CreateTable/UpdateTable.
package main

func main() {
	Execute()
}
