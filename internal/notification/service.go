package notification

import (
	"context"
	"log"

	"mailpilot-backend/internal/response/repository"
	"mailpilot-backend/pkg/fcm"
)

// Service fans pipeline events out to the user's registered devices.
// It satisfies the pipeline's Notifier contract.
type Service struct {
	fcmClient *fcm.Client
	tokens    repository.DeviceTokenRepository
}

func NewService(fcmClient *fcm.Client, tokens repository.DeviceTokenRepository) *Service {
	return &Service{fcmClient: fcmClient, tokens: tokens}
}

// Notify pushes to every device the user has registered and prunes
// tokens the provider reports as dead. Missing FCM configuration is not
// an error; the push is simply skipped.
func (s *Service) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	if s.fcmClient == nil {
		return nil
	}

	tokens, err := s.tokens.ListByUserID(userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := s.fcmClient.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		return err
	}

	for _, token := range failedTokens {
		if err := s.tokens.Delete(token); err != nil {
			log.Printf("[Notification] Failed to prune dead token: %v", err)
		}
	}
	return nil
}
