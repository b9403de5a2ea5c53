package recipient

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

var emailPattern = regexp.MustCompile(`^[^\s@<>(),;:"]+@[^\s@<>(),;:"]+\.[^\s@<>(),;:"]+$`)

// ValidEmail reports whether a normalized address is deliverable-looking.
func ValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// ResolveOptions controls pagination of a resolve.
type ResolveOptions struct {
	Offset int
	Limit  int
	// CountOnly skips materializing the page and returns only TotalCount.
	CountOnly bool
}

// Resolution is the outcome of a resolve. TotalCount is the audience size
// before pagination.
type Resolution struct {
	Recipients []domain.ResolvedRecipient `json:"recipients,omitempty"`
	TotalCount int                        `json:"total_count"`
}

// Resolver turns filter specs into audiences. lists and segments may be nil.
type Resolver struct {
	users    UserStore
	regs     RegistrationStore
	lists    ContactListProvider
	segments SegmentStore
	now      func() time.Time
}

// NewResolver wires the resolver to its sources.
func NewResolver(users UserStore, regs RegistrationStore, lists ContactListProvider, segments SegmentStore) *Resolver {
	return &Resolver{users: users, regs: regs, lists: lists, segments: segments, now: time.Now}
}

// recipientSet is keyed by normalized email. The first source to add an
// address owns its entry.
type recipientSet map[string]domain.ResolvedRecipient

func (s recipientSet) add(r domain.ResolvedRecipient) {
	if _, ok := s[r.Email]; !ok {
		s[r.Email] = r
	}
}

// Resolve computes the audience for spec plus extraEmails.
func (r *Resolver) Resolve(ctx context.Context, spec domain.RecipientFilterSpec, extraEmails []string, opts ResolveOptions) (*Resolution, error) {
	if spec.SegmentID != "" {
		merged, err := r.mergeSegment(ctx, spec)
		if err != nil {
			return nil, err
		}
		spec = merged
	}

	// U is nil when absent and non-nil (possibly empty) when present.
	var users recipientSet
	if spec.HasUserPredicates() {
		u, err := r.userSet(ctx, spec)
		if err != nil {
			return nil, err
		}
		users = u
	}

	result := recipientSet{}
	switch {
	case spec.HasEventPredicate():
		events, err := r.eventSet(ctx, spec.EventIDs)
		if err != nil {
			return nil, err
		}
		if users == nil {
			result = events
		} else {
			for email, u := range users {
				if _, ok := events[email]; ok {
					result[email] = u
				}
			}
		}
	case users != nil:
		result = users
	}

	r.addExternalLists(ctx, result, spec.ExternalListIDs)
	addCustom(result, spec.CustomEmails)
	addCustom(result, extraEmails)

	if err := r.subtractExcludeLists(ctx, result, spec.ExcludeListIDs); err != nil {
		return nil, err
	}

	res := &Resolution{TotalCount: len(result)}
	if opts.CountOnly {
		return res, nil
	}

	all := make([]domain.ResolvedRecipient, 0, len(result))
	for _, rec := range result {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	res.Recipients = paginate(all, opts.Offset, opts.Limit)
	return res, nil
}

func (r *Resolver) mergeSegment(ctx context.Context, spec domain.RecipientFilterSpec) (domain.RecipientFilterSpec, error) {
	if r.segments == nil {
		return spec, &ResolutionError{Source: "segment", Err: errors.New("no segment store configured")}
	}
	seg, err := r.segments.Get(ctx, spec.SegmentID)
	if err != nil {
		return spec, &ResolutionError{Source: "segment " + spec.SegmentID, Err: err}
	}
	return spec.Merge(seg.Filter), nil
}

func (r *Resolver) userSet(ctx context.Context, spec domain.RecipientFilterSpec) (recipientSet, error) {
	q := UserQuery{
		Subscriptions:        spec.Subscriptions,
		NoActiveSubscription: spec.NoActiveSubscription,
		Statuses:             spec.Statuses,
		Roles:                spec.Roles,
		ModulePermissions:    spec.ModulePermissions,
		RegisteredFrom:       spec.RegisteredFrom,
		RegisteredTo:         spec.RegisteredTo,
	}
	if spec.LastLoginWithinDays != nil {
		since := r.now().UTC().AddDate(0, 0, -*spec.LastLoginWithinDays)
		q.LastLoginSince = &since
	}

	users, err := r.users.FindUsers(ctx, q)
	if err != nil {
		return nil, &ResolutionError{Source: "users", Err: err}
	}

	set := make(recipientSet, len(users))
	for _, u := range users {
		email := domain.NormalizeEmail(u.Email)
		if email == "" {
			continue
		}
		set.add(domain.ResolvedRecipient{
			Email:     email,
			UserID:    u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Source:    domain.SourceUser,
		})
	}
	return set, nil
}

func (r *Resolver) eventSet(ctx context.Context, eventIDs []string) (recipientSet, error) {
	regs, err := r.regs.FindRegistrants(ctx, eventIDs, PaidOrFree)
	if err != nil {
		return nil, &ResolutionError{Source: "registrations", Err: err}
	}
	set := make(recipientSet, len(regs))
	for _, reg := range regs {
		email := domain.NormalizeEmail(reg.Email)
		if email == "" {
			continue
		}
		set.add(domain.ResolvedRecipient{
			Email:     email,
			UserID:    reg.UserID,
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Source:    domain.SourceEvent,
		})
	}
	return set, nil
}

// addExternalLists is additive and best effort: an unreachable list
// contributes nothing.
func (r *Resolver) addExternalLists(ctx context.Context, set recipientSet, listIDs []string) {
	if len(listIDs) == 0 {
		return
	}
	if r.lists == nil {
		logger.Warn("[Resolver] external lists requested but no provider configured", "lists", len(listIDs))
		return
	}
	for _, id := range listIDs {
		contacts, err := r.lists.ListContacts(ctx, id)
		if err != nil {
			logger.Warn("[Resolver] contact list unavailable, skipping", "list_id", id, "error", err)
			continue
		}
		for _, c := range contacts {
			email := domain.NormalizeEmail(c.Email)
			if !ValidEmail(email) {
				continue
			}
			set.add(domain.ResolvedRecipient{
				Email:     email,
				FirstName: c.FirstName,
				LastName:  c.LastName,
				Source:    domain.SourceExternal,
				Variables: c.Fields,
			})
		}
	}
}

func addCustom(set recipientSet, emails []string) {
	for _, raw := range emails {
		email := domain.NormalizeEmail(raw)
		if email == "" {
			continue
		}
		if !ValidEmail(email) {
			logger.Warn("[Resolver] dropping invalid address", "email", email)
			continue
		}
		set.add(domain.ResolvedRecipient{Email: email, Source: domain.SourceCustom})
	}
}

// subtractExcludeLists fails closed: sending to someone on an exclude list
// is worse than not sending.
func (r *Resolver) subtractExcludeLists(ctx context.Context, set recipientSet, listIDs []string) error {
	if len(listIDs) == 0 {
		return nil
	}
	if r.lists == nil {
		return &ResolutionError{Source: "exclude lists", Err: errors.New("no contact list provider configured")}
	}
	for _, id := range listIDs {
		contacts, err := r.lists.ListContacts(ctx, id)
		if err != nil {
			return &ResolutionError{Source: "exclude list " + id, Err: err}
		}
		for _, c := range contacts {
			delete(set, domain.NormalizeEmail(c.Email))
		}
	}
	return nil
}

func paginate(all []domain.ResolvedRecipient, offset, limit int) []domain.ResolvedRecipient {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.ResolvedRecipient{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
