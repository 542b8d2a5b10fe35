package domain

import "time"

// Session captures login metadata cached for the lifetime of a refresh
// token. Sessions live in the cache only; losing one never invalidates
// the tokens it was created with.
type Session struct {
	ID        string
	UserID    string
	Email     string
	Role      string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	LastSeen  time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// Touch updates last-seen metadata for the session when activity occurs.
func (s *Session) Touch(at time.Time, ip, userAgent *string) {
	s.LastSeen = at
	if ip != nil {
		ipCopy := *ip
		s.IP = &ipCopy
	}
	if userAgent != nil {
		uaCopy := *userAgent
		s.UserAgent = &uaCopy
	}
}
