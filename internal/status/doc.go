// Package status implements the per-job publish/subscribe channel that
// mirrors every job state change to live client connections. Delivery is
// best-effort in publish order with no replay; a terminal event ends each
// subscription.
package status
