// Package notifications fans a notification out over email, Microsoft Teams
// and in-app channels.
//
// Recipients carry one address per channel. The email channel reads Email,
// the Teams channel reads TeamsWebhookURL and the in-app channel reads
// UserSocketRoom or ProjectSocketRoom. Channels are delivered concurrently
// and each produces its own ChannelResult:
//
//	d := notifications.NewDispatcher(
//		notifications.WithChannel(notifications.NewEmailChannel(notifications.NewLogSender(logger))),
//		notifications.WithChannel(notifications.NewTeamsChannel(10*time.Second)),
//		notifications.WithChannel(notifications.NewInAppChannel(hub)),
//	)
//	results, err := d.Dispatch(ctx, &notifications.Request{...})
//
// Only a malformed request returns an error.
package notifications
