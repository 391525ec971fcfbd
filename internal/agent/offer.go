package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/fmuoria/agent-studio/internal/catalog"
	"github.com/fmuoria/agent-studio/internal/ingestion"
)

// Work modalities offered in the job offer form
const (
	ModalityOnSite = "On-site"
	ModalityRemote = "Remote"
	ModalityHybrid = "Hybrid"
)

// linkedInSourceChars bounds how much of the offer is condensed into a post
const linkedInSourceChars = 1000

// OfferRequest describes the position a job offer is written for
type OfferRequest struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Modality    string `json:"modality"`
}

// Validate checks the required fields and normalizes the modality
func (r *OfferRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Company) == "" {
		missing = append(missing, "company")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	switch strings.ToLower(strings.TrimSpace(r.Modality)) {
	case "", "on-site", "onsite":
		r.Modality = ModalityOnSite
	case "remote":
		r.Modality = ModalityRemote
	case "hybrid":
		r.Modality = ModalityHybrid
	default:
		return fmt.Errorf("%w: modality must be one of %s, %s, %s", ErrInvalidRequest, ModalityOnSite, ModalityRemote, ModalityHybrid)
	}
	return nil
}

// GenerateOffer writes a job offer and strips reasoning leftovers from the reply
func (a *CVReviewAgent) GenerateOffer(ctx context.Context, req OfferRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Write a professional job offer for: %s at %s

Description: %s
Location: %s | Modality: %s | Salary: %s

WRITE THE OFFER WITH THESE SECTIONS:

- ATTRACTIVE TITLE (optimized for search)
- ABOUT THE COMPANY (2-3 lines that spark interest)
- MISSION OF THE ROLE (the impact it will have)
- KEY RESPONSIBILITIES (the 5 main ones, specific)
- REQUIRED QUALIFICATIONS (technical and experience)
- DESIRABLE QUALIFICATIONS (what makes a difference)
- WHAT WE OFFER (attractive, competitive benefits)
- SELECTION PROCESS (clear steps)
- CALL TO ACTION (how to apply)

IMPORTANT:
- Use professional but friendly language
- Include keywords for applicant tracking systems
- Make it attractive to top candidates
- No asterisks, only clean text and bullets (•)`,
		req.Title, req.Company, req.Description, req.Location, req.Modality, req.Salary)

	reply, err := a.run(ctx, "offer generation", catalog.HROffer, prompt)
	if err != nil {
		return "", err
	}
	return CleanOffer(reply), nil
}

// LinkedInPost condenses an offer into a short social post
func (a *CVReviewAgent) LinkedInPost(ctx context.Context, offer string, req OfferRequest) (string, error) {
	if strings.TrimSpace(offer) == "" {
		return "", fmt.Errorf("%w: offer text is required", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Turn this job offer into a professional but engaging LinkedIn post:

%s

LINKEDIN STRUCTURE:
Opening hook
%s | %s | %s

What you will do:
• [Top responsibility]
• [Top responsibility]

We are looking for:
• [Key requirement]
• [Key requirement]

We offer:
• [Attractive benefit]
• [Attractive benefit]

Tag someone who might be interested
Apply in the comments or by DM

[3-4 relevant hashtags]

MAXIMUM 280 characters. Plain text only, no markdown.`,
		ingestion.Truncate(offer, linkedInSourceChars), req.Location, req.Modality, req.Salary)

	return a.run(ctx, "linkedin post", catalog.HRLinkedIn, prompt)
}

var offerMetadataMarkers = []string{"based on the gathered information", "reasoningstep"}

var offerMetadataWords = []string{"reasoning", "metadata", "confidence", "next_action", "based on"}

// CleanOffer removes reasoning metadata lines when the reply contains them.
// Replies without such markers are returned unchanged.
func CleanOffer(reply string) string {
	lower := strings.ToLower(reply)
	hasMarker := false
	for _, m := range offerMetadataMarkers {
		if strings.Contains(lower, m) {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		return reply
	}

	lines := strings.Split(reply, "\n")
	kept := lines[:0]
	for _, line := range lines {
		l := strings.ToLower(line)
		drop := false
		for _, w := range offerMetadataWords {
			if strings.Contains(l, w) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
