// Package delivery sends the client email draft.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/common/validation"
)

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// Message is one outgoing email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// SESSender delivers email drafts through Amazon SES.
type SESSender struct {
	client SESAPI
	from   string
	logger logger.Logger
}

func NewSESSender(client SESAPI, from string, log logger.Logger) *SESSender {
	return &SESSender{client: client, from: from, logger: log}
}

// Send returns the SES message ID.
func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", apperrors.NewValidationFailedError("to: at least one recipient is required")
	}
	for _, addr := range msg.To {
		if !validation.ValidateEmail(addr) {
			return "", apperrors.NewValidationFailedError(fmt.Sprintf("to: invalid email address %q", addr))
		}
	}
	if strings.TrimSpace(msg.Body) == "" {
		return "", apperrors.NewValidationFailedError("body: email draft is empty")
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: msg.To},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		s.logger.Error("Email delivery failed", map[string]interface{}{
			"recipients": len(msg.To),
			"error":      err.Error(),
		})
		return "", apperrors.NewDeliveryFailedError(err)
	}

	messageID := aws.ToString(out.MessageId)
	s.logger.Info("Email draft sent", map[string]interface{}{
		"recipients": len(msg.To),
		"messageId":  messageID,
	})
	return messageID, nil
}
