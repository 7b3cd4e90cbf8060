// Package billing manages subscription plans and user subscriptions,
// and answers entitlement queries for content gating.
//
// Plans are either global or scoped to a single workspace. A user's
// entitlements are the cross product of their active subscriptions and
// the still-active plans behind them; canceled or expired subscriptions
// and archived plans grant nothing. Payment processing happens outside
// this system, the provider field on a subscription only records where
// it came from.
package billing
