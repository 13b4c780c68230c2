// Package automation matches domain events against declarative rules and runs
// the actions of the rules that match.
//
// A rule fires when it is enabled, its trigger type equals the event type and
// every top-level condition holds. Conditions form a typed tree:
//
//	field_equals  {field, value}   dotted path looked up in event data, then the event, then the request context
//	user_in_roles {roles}          actor holds any of roles
//	anyOf         {conditions}     OR, false when empty
//	allOf         {conditions}     AND, true when empty
//
// Actions run in declaration order and each reports its own outcome:
// notify dispatches a notification, update_field changes an issue field and
// call_webhook publishes to webhook subscribers. Recipient strings may hold
// {key} placeholders filled from event data, and a notify data.template may
// reference {event.data...} paths.
//
// Rules can be loaded from a YAML file and hot reloaded:
//
//	engine := automation.NewEngine(automation.WithNotifier(dispatcher))
//	if err := engine.LoadFile("rules.yaml"); err != nil { ... }
//	engine.Watch(ctx, "rules.yaml")
package automation
