//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"agentsites/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func testConfig(name string) Config {
	return Config{
		Exchange:   "agent-sites-" + name,
		RoutingKey: "builds-" + name,
		QueueName:  "build-notifications-" + name,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := testConfig("connect")
	cfg.URL = s.amqpURL

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	s.NoError(pub.Close())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_BuildSucceeded() {
	cfg := testConfig("success")
	cfg.URL = s.amqpURL

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	event := domain.BuildEvent{
		BuildID:       uuid.New(),
		TenantID:      uuid.New(),
		Subdomain:     "jane",
		TriggerReason: domain.TriggerContentApproved,
		Success:       true,
		DeploymentURL: "https://jane.nestassociates.co.uk",
		FinishedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	s.Require().NoError(pub.PublishBuildEvent(s.ctx, event))

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(event.BuildID.String(), msg.MessageId)
	s.Equal(TypeBuildSucceeded, msg.Type)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received BuildMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(TypeBuildSucceeded, received.Type)
	s.Equal(event.BuildID, received.Build.BuildID)
	s.Equal(event.TenantID, received.Build.TenantID)
	s.Equal("https://jane.nestassociates.co.uk", received.Build.DeploymentURL)
	s.True(received.Build.FinishedAt.Equal(event.FinishedAt))
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_BuildFailed() {
	cfg := testConfig("failure")
	cfg.URL = s.amqpURL

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	event := domain.BuildEvent{
		BuildID:       uuid.New(),
		TenantID:      uuid.New(),
		Subdomain:     "bob",
		TriggerReason: "global_content:footer",
		ErrorMessage:  "Deployment failed with state: ERROR (Build failed)",
		FinishedAt:    time.Now().UTC(),
	}

	s.Require().NoError(pub.PublishBuildEvent(s.ctx, event))

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	var received BuildMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(TypeBuildFailed, received.Type)
	s.False(received.Build.Success)
	s.Equal("global_content:footer", received.Build.TriggerReason)
	s.Contains(received.Build.ErrorMessage, "ERROR")
	s.Empty(received.Build.DeploymentURL)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
