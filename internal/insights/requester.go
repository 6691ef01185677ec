package insights

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/campaign"
)

// ContentRequest asks the content service to draft campaign material.
type ContentRequest struct {
	CampaignID        string               `json:"campaignId"`
	Name              string               `json:"name"`
	AgentID           string               `json:"agentId"`
	TargetDemographic campaign.Demographic `json:"targetDemographic"`
	MatchedTenants    int                  `json:"matchedTenants"`
	PropertyIDs       []string             `json:"propertyIds"`
	RequestedAt       time.Time            `json:"requestedAt"`
}

// publisher is the part of *amqp.Channel the requester uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Requester publishes content generation requests to RabbitMQ. It returns no
// insight lines itself; generated content arrives out of band.
type Requester struct {
	ch         publisher
	conn       *amqp.Connection
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// RequesterConfig holds the broker settings.
type RequesterConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// Dial connects to the broker and declares the exchange.
func Dial(cfg RequesterConfig, logger *zap.Logger) (*Requester, error) {
	if cfg.URL == "" {
		return nil, eris.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "failed to dial RabbitMQ")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "failed to open a channel")
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, eris.Wrapf(err, "failed to declare exchange %q", cfg.Exchange)
	}

	r := NewRequester(ch, cfg.Exchange, cfg.RoutingKey, logger)
	r.conn = conn
	return r, nil
}

// NewRequester publishes through an already open channel.
func NewRequester(ch publisher, exchange, routingKey string, logger *zap.Logger) *Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requester{ch: ch, exchange: exchange, routingKey: routingKey, logger: logger.Named("insights")}
}

// Insights publishes one request for c.
func (r *Requester) Insights(ctx context.Context, c *campaign.Campaign) ([]string, error) {
	req := BuildRequest(c, time.Now().UTC())
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode content request")
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    c.ID,
		Timestamp:    req.RequestedAt,
		Body:         body,
	}
	if err := r.ch.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, msg); err != nil {
		return nil, eris.Wrapf(err, "failed to publish content request for campaign %s", c.ID)
	}

	r.logger.Info("content generation requested",
		zap.String("campaign_id", c.ID),
		zap.String("exchange", r.exchange),
		zap.String("routing_key", r.routingKey))
	return nil, nil
}

// Close releases the broker connection opened by Dial.
func (r *Requester) Close() error {
	var firstErr error
	if ch, ok := r.ch.(*amqp.Channel); ok && ch != nil {
		if err := ch.Close(); err != nil {
			firstErr = err
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildRequest converts a finished campaign into a content request.
func BuildRequest(c *campaign.Campaign, at time.Time) ContentRequest {
	ids := make([]string, len(c.TargetProperties))
	copy(ids, c.TargetProperties)
	return ContentRequest{
		CampaignID:        c.ID,
		Name:              c.Name,
		AgentID:           c.AgentID,
		TargetDemographic: c.TargetDemographic,
		MatchedTenants:    len(c.MatchedTenants),
		PropertyIDs:       ids,
		RequestedAt:       at,
	}
}
