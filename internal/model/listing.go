package model

import (
	"encoding/json"

	"github.com/go-faster/errors"
)

type ListingKind string

const (
	ListingJobPosting ListingKind = "job_posting"
	ListingInvitation ListingKind = "invitation"
)

type JobPosting struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title" validate:"required"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=draft open closed"`
}

type Invitation struct {
	ID     string `json:"id,omitempty"`
	Email  string `json:"email" validate:"required,email"`
	Role   string `json:"role" validate:"required"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=pending accepted expired revoked"`
}

// Listing is the recruiting feed entry: either a job posting or an
// invitation, discriminated by the "type" field on the wire.
type Listing struct {
	Kind       ListingKind `json:"type" validate:"oneof=job_posting invitation"`
	Job        *JobPosting `json:"-"`
	Invitation *Invitation `json:"-"`
}

var ErrUnknownListing = errors.New("unknown listing type")

func NewJobListing(job JobPosting) Listing {
	return Listing{Kind: ListingJobPosting, Job: &job}
}

func NewInvitationListing(inv Invitation) Listing {
	return Listing{Kind: ListingInvitation, Invitation: &inv}
}

func (l Listing) Key() string {
	switch {
	case l.Job != nil:
		return l.Job.ID
	case l.Invitation != nil:
		return l.Invitation.ID
	}
	return ""
}

func (l Listing) StatusValue() string {
	switch {
	case l.Job != nil:
		return l.Job.Status
	case l.Invitation != nil:
		return l.Invitation.Status
	}
	return ""
}

func (l Listing) SearchFields() []string {
	switch {
	case l.Job != nil:
		return []string{l.Job.Title, l.Job.Department}
	case l.Invitation != nil:
		return []string{l.Invitation.Email, l.Invitation.Role}
	}
	return nil
}

// Title is the single line label used by list views.
func (l Listing) Title() string {
	switch {
	case l.Job != nil:
		return l.Job.Title
	case l.Invitation != nil:
		return l.Invitation.Email
	}
	return ""
}

func (l Listing) MarshalJSON() ([]byte, error) {
	var body any
	switch l.Kind {
	case ListingJobPosting:
		if l.Job == nil {
			return nil, errors.New("job posting listing without payload")
		}
		body = struct {
			Type ListingKind `json:"type"`
			JobPosting
		}{l.Kind, *l.Job}
	case ListingInvitation:
		if l.Invitation == nil {
			return nil, errors.New("invitation listing without payload")
		}
		body = struct {
			Type ListingKind `json:"type"`
			Invitation
		}{l.Kind, *l.Invitation}
	default:
		return nil, errors.Wrapf(ErrUnknownListing, "%q", l.Kind)
	}
	return json.Marshal(body)
}

func (l *Listing) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ListingKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return errors.Wrap(err, "decode listing type")
	}

	switch head.Type {
	case ListingJobPosting:
		var job JobPosting
		if err := json.Unmarshal(data, &job); err != nil {
			return errors.Wrap(err, "decode job posting")
		}
		*l = Listing{Kind: head.Type, Job: &job}
	case ListingInvitation:
		var inv Invitation
		if err := json.Unmarshal(data, &inv); err != nil {
			return errors.Wrap(err, "decode invitation")
		}
		*l = Listing{Kind: head.Type, Invitation: &inv}
	default:
		return errors.Wrapf(ErrUnknownListing, "%q", head.Type)
	}
	return nil
}
