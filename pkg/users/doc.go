// Package users manages platform accounts. Identity itself is
// established upstream; this package owns the account records that role
// assignments, subscriptions and sessions hang off.
package users
