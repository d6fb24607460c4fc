package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/italosilva18/cte-mdfe-api-sub000/config"
)

// Publisher sends processed-document notifications to the platform queue
type Publisher interface {
	SendMessage(ctx context.Context, body interface{}) error
	Close() error
}

// serviceBusPublisher implements Publisher over Azure Service Bus
type serviceBusPublisher struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

// NewServiceBusPublisher creates a new Azure Service Bus publisher
func NewServiceBusPublisher(cfg config.ServiceBusConfig) (Publisher, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &serviceBusPublisher{client: client, sender: sender}, nil
}

// SendMessage sends a message to the queue
func (p *serviceBusPublisher) SendMessage(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "fiscal-ingest",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}
	return p.sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (p *serviceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}
