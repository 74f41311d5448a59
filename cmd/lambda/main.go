// Command lambda runs the analyst backend behind API Gateway. The sweeper
// does not run here: stale-agent redispatch on Lambda is driven by a
// scheduled invocation hitting the trigger endpoints.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"

	"analyst-backend/infrastructure/config"
	"analyst-backend/infrastructure/di"
)

var adapter *chiadapter.ChiLambdaV2

func init() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	container, err := di.NewContainer(context.Background(), cfg, logger)
	if err != nil {
		panic(err)
	}

	adapter = chiadapter.NewV2(container.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return adapter.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(handler)
}
