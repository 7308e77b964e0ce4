// Package event publishes storefront activity to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/lagosbazaar/pkg/kafka"
	"github.com/utafrali/lagosbazaar/pkg/logger"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
)

// Kafka topics for storefront events.
var (
	TopicCartUpdated        = kafka.Topic("cart", "updated")
	TopicCheckoutStarted    = kafka.Topic("checkout", "started")
	TopicAIContentGenerated = kafka.Topic("ai_content", "generated")
)

const (
	// SourceStorefront identifies events emitted by this service.
	SourceStorefront = "storefront-service"

	// CurrencyNGN is the currency of every cart amount.
	CurrencyNGN = "NGN"
)

// CartItemData is a cart line within event payloads.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartData is the payload of cart.updated and checkout.started events.
type CartData struct {
	SessionID   string         `json:"session_id"`
	Items       []CartItemData `json:"items"`
	ItemCount   int            `json:"item_count"`
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
}

// AIContentData is the payload of ai_content.generated events.
type AIContentData struct {
	SessionID    string `json:"session_id"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	FeatureCount int    `json:"feature_count"`
	TagCount     int    `json:"tag_count"`
}

// Producer turns storefront state changes into Kafka events.
type Producer struct {
	publisher kafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a producer over publisher.
func NewProducer(publisher kafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, cart domain.Cart) error {
	return p.publish(ctx, TopicCartUpdated, sessionID, cartData(sessionID, cart), "currency", CurrencyNGN)
}

// PublishCheckoutStarted publishes a checkout.started event.
func (p *Producer) PublishCheckoutStarted(ctx context.Context, sessionID string, cart domain.Cart) error {
	return p.publish(ctx, TopicCheckoutStarted, sessionID, cartData(sessionID, cart), "currency", CurrencyNGN)
}

// PublishAIContentGenerated publishes an ai_content.generated event.
func (p *Producer) PublishAIContentGenerated(ctx context.Context, sessionID string, product domain.Product, content domain.AIContent) error {
	return p.publish(ctx, TopicAIContentGenerated, sessionID, AIContentData{
		SessionID:    sessionID,
		ProductID:    product.ID,
		ProductName:  product.Name,
		FeatureCount: len(content.KeyFeatures),
		TagCount:     len(content.SEOTags),
	}, "product_id", product.ID)
}

// publish wraps data in an event. meta is a flat list of key, value pairs.
func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any, meta ...string) error {
	evt, err := kafka.NewEvent(topic, sessionID, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	for i := 0; i+1 < len(meta); i += 2 {
		evt.WithMetadata(meta[i], meta[i+1])
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published storefront event",
		slog.String("topic", topic),
		slog.String("session_id", sessionID),
	)
	return nil
}

func cartData(sessionID string, cart domain.Cart) CartData {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			ProductID: item.ID,
			Name:      item.Name,
			Category:  item.Category,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}
	return CartData{
		SessionID:   sessionID,
		Items:       items,
		ItemCount:   cart.ItemCount(),
		TotalAmount: cart.TotalAmount(),
		Currency:    "NGN",
	}
}
