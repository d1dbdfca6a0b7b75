package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lofty-concierge/server/internal/agent/model"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

const (
	simulatedContactID = "simulated_contact_id"
	simulatedDealID    = "simulated_deal_id"

	StageAppointmentScheduled = "appointmentscheduled"
	StageClosedWon            = "closedwon"
	StageClosedLost           = "closedlost"
)

type object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type propertiesInput struct {
	Properties map[string]string `json:"properties"`
}

type associationType struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// CreateOrFindContact creates a lead contact. When the email already exists the
// existing contact is updated and its id returned.
func (c *Client) CreateOrFindContact(ctx context.Context, name, email, phone string) (string, error) {
	if c.Simulated() {
		return simulatedContactID, nil
	}

	first, last := splitName(name)
	props := map[string]string{
		"email":          email,
		"firstname":      first,
		"lastname":       last,
		"phone":          phone,
		"lifecyclestage": "lead",
	}

	var created object
	err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", propertiesInput{Properties: props}, &created)
	if err == nil {
		return created.ID, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.existingID() == "" {
		return "", fmt.Errorf("create contact: %w", err)
	}

	id := apiErr.existingID()
	logx.Debug().Str("contact_id", id).Msg("Contact already exists, updating")
	delete(props, "lifecyclestage")
	if err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+objectPath(id), propertiesInput{Properties: props}, nil); err != nil {
		logx.Warn().Err(err).Str("contact_id", id).Msg("failed to update existing contact")
	}
	return id, nil
}

// CreateDeal creates the deal and links it to the contact. A failed link is
// logged and does not fail the deal.
func (c *Client) CreateDeal(ctx context.Context, in model.DealInput) (string, error) {
	if c.Simulated() {
		return simulatedDealID, nil
	}

	props := map[string]string{
		"dealname":    strings.TrimSpace(in.ProjectType + " Renovation"),
		"amount":      strconv.FormatFloat(in.Amount, 'f', 2, 64),
		"dealstage":   StageAppointmentScheduled,
		"description": in.Note,
	}
	var deal object
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/deals", propertiesInput{Properties: props}, &deal); err != nil {
		return "", fmt.Errorf("create deal: %w", err)
	}

	if _, err := strconv.ParseUint(in.ContactID, 10, 64); err == nil {
		path := "/crm/v4/objects/deals/" + objectPath(deal.ID, "associations", "contacts", in.ContactID)
		assoc := []associationType{{AssociationCategory: "HUBSPOT_DEFINED", AssociationTypeID: assocDealToContact}}
		if err := c.do(ctx, http.MethodPut, path, assoc, nil); err != nil {
			logx.Warn().Err(err).Str("deal_id", deal.ID).Str("contact_id", in.ContactID).Msg("deal created but not linked to contact")
		}
	}
	return deal.ID, nil
}

func (c *Client) UpdateDealStage(ctx context.Context, dealID, stage string) (bool, error) {
	if c.Simulated() {
		return false, nil
	}
	props := propertiesInput{Properties: map[string]string{"dealstage": stage}}
	if err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/deals/"+objectPath(dealID), props, nil); err != nil {
		return false, fmt.Errorf("update deal stage: %w", err)
	}
	return true, nil
}

func (c *Client) AddNote(ctx context.Context, dealID, text string) (bool, error) {
	if c.Simulated() {
		return false, nil
	}
	body := map[string]any{
		"properties": map[string]string{
			"hs_timestamp": strconv.FormatInt(c.now().UnixMilli(), 10),
			"hs_note_body": text,
		},
		"associations": []map[string]any{{
			"to":    map[string]string{"id": dealID},
			"types": []associationType{{AssociationCategory: "HUBSPOT_DEFINED", AssociationTypeID: assocNoteToDeal}},
		}},
	}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/notes", body, nil); err != nil {
		return false, fmt.Errorf("add note: %w", err)
	}
	return true, nil
}

// FindDealByEmail returns the latest deal linked to the contact with email.
func (c *Client) FindDealByEmail(ctx context.Context, email string) (*model.DealInfo, error) {
	if c.Simulated() {
		return &model.DealInfo{Project: "Luxury Kitchen (Demo)", Status: "In Progress", Link: "#"}, nil
	}

	search := map[string]any{
		"filterGroups": []map[string]any{{
			"filters": []map[string]string{{"propertyName": "email", "operator": "EQ", "value": email}},
		}},
		"properties": []string{"firstname", "lastname"},
		"limit":      1,
	}
	var contacts struct {
		Total   int      `json:"total"`
		Results []object `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", search, &contacts); err != nil {
		return nil, fmt.Errorf("search contact: %w", err)
	}
	if contacts.Total == 0 || len(contacts.Results) == 0 {
		return nil, nil
	}
	contact := contacts.Results[0]

	var assoc struct {
		Results []struct {
			ToObjectID json.Number `json:"toObjectId"`
		} `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/crm/v4/objects/contacts/"+objectPath(contact.ID, "associations", "deals"), nil, &assoc); err != nil {
		return nil, fmt.Errorf("list deal associations: %w", err)
	}
	info := &model.DealInfo{FirstName: contact.Properties["firstname"]}
	if len(assoc.Results) == 0 {
		info.Project = "No Active Project"
		info.Status = "Pending"
		return info, nil
	}

	dealID := assoc.Results[0].ToObjectID.String()
	var deal object
	path := "/crm/v3/objects/deals/" + objectPath(dealID) + "?properties=dealname,dealstage,description,amount"
	if err := c.do(ctx, http.MethodGet, path, nil, &deal); err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	info.DealID = deal.ID
	info.Project = deal.Properties["dealname"]
	info.Status = deal.Properties["dealstage"]
	info.Amount = deal.Properties["amount"]
	info.Link = c.portalLink
	return info, nil
}

var _ model.CRM = (*Client)(nil)
