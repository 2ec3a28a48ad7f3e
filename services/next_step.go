package services

import (
	"context"
	"fmt"
	"net/url"
)

// Handoff tells the client where to go once the scan is stored
type Handoff struct {
	Step string `json:"step"`
	URL  string `json:"url"`
}

// NextStep is the flow that follows a completed scan upload
type NextStep interface {
	Proceed(ctx context.Context, customerID, retailerID string) (*Handoff, error)
}

// QuestionnaireHandoff sends the customer on to the insole questionnaire
type QuestionnaireHandoff struct {
	BaseURL string
}

var _ NextStep = (*QuestionnaireHandoff)(nil)

// Proceed builds the questionnaire URL for the customer
func (q *QuestionnaireHandoff) Proceed(ctx context.Context, customerID, retailerID string) (*Handoff, error) {
	u, err := url.Parse(q.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid questionnaire url: %w", err)
	}

	query := u.Query()
	query.Set("customer_id", customerID)
	query.Set("retailer_id", retailerID)
	u.RawQuery = query.Encode()

	return &Handoff{Step: "insole_questionnaire", URL: u.String()}, nil
}
