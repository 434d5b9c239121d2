package model

import "time"

type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber is a newsletter address. Email is unique.
type Subscriber struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Status       SubscriberStatus `json:"status"`
	SubscribedAt time.Time        `json:"subscribedAt"`
}
