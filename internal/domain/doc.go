// Package domain contains the core business entities of the review engine:
// review items, their schedules, grades and the derived difficulty label.
// It is independent of any storage or delivery mechanism.
package domain
