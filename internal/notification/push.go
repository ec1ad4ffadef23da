package notification

import (
	"context"
	"log"

	messagedomain "voicebox-backend/internal/message/domain"
	userrepo "voicebox-backend/internal/user/repository"
	"voicebox-backend/pkg/fcm"
)

// PushNotifier sends FCM notifications when a message classifies as
// important. Delivery is best-effort; failures are logged and dead
// tokens pruned.
type PushNotifier struct {
	fcmRepo   userrepo.FCMTokenRepository
	fcmClient *fcm.Client
}

// NewPushNotifier creates a push notifier
func NewPushNotifier(fcmRepo userrepo.FCMTokenRepository, fcmClient *fcm.Client) *PushNotifier {
	return &PushNotifier{
		fcmRepo:   fcmRepo,
		fcmClient: fcmClient,
	}
}

// NotifyImportant pushes a heads-up about an important message to all of
// the user's registered devices
func (n *PushNotifier) NotifyImportant(ctx context.Context, userID string, result *messagedomain.ProcessedMessage) {
	if n.fcmClient == nil {
		return
	}

	tokens, err := n.fcmRepo.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[Push] Error getting FCM tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	body := result.Summary
	if body == "" {
		body = "A new message needs your attention"
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := n.fcmClient.SendToDevices(ctx, tokenStrings, fcm.Notification{
		Title: "Important message",
		Body:  body,
		Data: map[string]string{
			"type":       "important_message",
			"message_id": result.MessageID,
			"source":     string(result.Source),
		},
	})
	if err != nil {
		log.Printf("[Push] Error sending notification for user %s: %v", userID, err)
		return
	}

	for _, token := range failedTokens {
		if err := n.fcmRepo.DeleteToken(token); err != nil {
			log.Printf("[Push] Error pruning token: %v", err)
		}
	}
}
