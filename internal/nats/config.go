// Package nats carries publication change notifications between service
// instances over core NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const listenBuffer = 64

type Client struct {
	Conn   *nats.Conn
	logger *zap.Logger
	closed chan struct{}
}

func NewClient(url string, reconnectWait time.Duration, logger *zap.Logger) (*Client, error) {
	c := &Client{logger: logger, closed: make(chan struct{})}

	opts := []nats.Option{
		nats.Name("publication-images"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("[NATS] disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("[NATS] reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("[NATS] connection closed")
			close(c.closed)
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	c.Conn = conn

	logger.Info("[NATS] connected", zap.String("url", conn.ConnectedUrl()))
	return c, nil
}

// Notify announces that imageID changed in the publication index.
func (c *Client) Notify(ctx context.Context, publicationID, imageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(models.PublicationChange{
		PublicationID: publicationID,
		ImageID:       imageID,
	})
	if err != nil {
		return err
	}

	msg := nats.NewMsg(PublicationSubject(publicationID))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if err := c.Conn.PublishMsg(msg); err != nil {
		c.logger.Error("[NATS] publish failed", zap.String("subject", msg.Subject), zap.Error(err))
		return err
	}
	return nil
}

// Listen streams the ids of changed images for a publication. The channel is
// closed when ctx is done or the connection is closed for good.
func (c *Client) Listen(ctx context.Context, publicationID string) (<-chan string, error) {
	msgs := make(chan *nats.Msg, listenBuffer)
	sub, err := c.Conn.ChanSubscribe(PublicationSubject(publicationID), msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	c.logger.Debug("[NATS] subscribed", zap.String("subject", sub.Subject))

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case msg := <-msgs:
				change, err := DecodeChange(msg.Data)
				if err != nil {
					c.logger.Warn("[NATS] dropping malformed change", zap.Error(err))
					continue
				}
				select {
				case out <- change.ImageID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) CheckConnection() error {
	if c == nil || c.Conn == nil || !c.Conn.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (c *Client) Close() {
	c.Conn.Close()
}
