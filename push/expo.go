package push

import (
	"context"
	"errors"
	"fmt"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

// Expo sends through the Expo push service.
type Expo struct {
	client *expo.PushClient
}

func NewExpo() *Expo {
	return &Expo{client: expo.NewPushClient(nil)}
}

// Push sends one Expo message per token in a single batch request.
// Malformed tokens are reported as unregistered without being sent.
func (e *Expo) Push(ctx context.Context, msg Message) (Result, error) {
	var res Result
	batch := make([]expo.PushMessage, 0, len(msg.Tokens))
	for _, raw := range msg.Tokens {
		tok, err := expo.NewExponentPushToken(raw)
		if err != nil {
			res.Unregistered = append(res.Unregistered, raw)
			continue
		}
		batch = append(batch, expo.PushMessage{
			To:       []expo.ExponentPushToken{tok},
			Title:    msg.Title,
			Body:     msg.Body,
			Data:     msg.Data,
			Sound:    "default",
			Priority: expo.DefaultPriority,
		})
	}
	if len(batch) == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	responses, err := e.client.PublishMultiple(batch)
	if err != nil {
		return res, fmt.Errorf("push: expo publish: %w", err)
	}

	var failed int
	for _, r := range responses {
		verr := r.ValidateResponse()
		if verr == nil {
			continue
		}
		var dnr *expo.DeviceNotRegisteredError
		if errors.As(verr, &dnr) {
			for _, t := range r.PushMessage.To {
				res.Unregistered = append(res.Unregistered, string(t))
			}
			continue
		}
		failed++
	}
	if failed > 0 && failed == len(responses) {
		return res, fmt.Errorf("push: all %d expo tickets failed", failed)
	}
	return res, nil
}
