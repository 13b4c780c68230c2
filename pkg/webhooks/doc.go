// Package webhooks delivers domain events to registered HTTP endpoints.
//
// # Overview
//
// Webhooks are stored in SQL and subscribe to event types such as
// "board.issue_moved" or "automation.issue.created" ("*" matches every type).
// Dispatch queues one delivery per subscribed webhook on a worker pool. Failed
// deliveries are retried with exponential backoff by a cron-scheduled sweep, and
// each webhook is rate limited on its own.
//
// # Usage Example
//
//	manager := webhooks.NewManager(webhooks.NewStore(db), webhooks.WithMetrics(metrics))
//	if err := manager.Start(ctx, webhooks.DefaultRetrySchedule); err != nil {
//		return err
//	}
//	defer manager.Stop(5 * time.Second)
//
//	manager.Register(ctx, webhooks.CreateWebhookInput{
//		URL:    "https://ci.example.com/hooks/sprintflow",
//		Events: []string{webhooks.EventBoardIssueMoved},
//		Secret: "webhook-secret",
//	})
//	manager.Publish(ctx, webhooks.EventBoardIssueMoved, payload)
//
// Verify signature (receiver side):
//
//	sig := r.Header.Get(webhooks.HeaderSignature)
//	if !webhooks.VerifySignature(body, sig, secret) {
//		return errors.New("invalid signature")
//	}
//
// # Retry Policy
//
// Backoff: 1s, 2s, 4s, 8s, capped at 5m. Five attempts in total, each bounded
// by the client timeout (10s by default).
package webhooks
