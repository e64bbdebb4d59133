package noteservice

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/starford/cogninote/internal/search"
)

// Suggest returns related keywords for query. It never fails; queries
// shorter than the minimum length get no suggestions.
func (s *Service) Suggest(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < s.cfg.MinQueryLength {
		return []string{}
	}
	kws := s.know.SuggestKeywords(ctx, query)
	if kws == nil {
		return []string{}
	}
	return kws
}

// Expand registers query as the latest search of session. Suggestions are
// debounced and only the newest query's result is published.
func (s *Service) Expand(session, query string) uint64 {
	return s.keywords.Update(session, strings.TrimSpace(query))
}

// LatestKeywords returns the last suggestion published for session.
func (s *Service) LatestKeywords(session string) (search.Suggestion, bool) {
	return s.keywords.Latest(session)
}

// ForgetKeywords drops the expansion state of session, typically when its
// event stream disconnects.
func (s *Service) ForgetKeywords(session string) {
	s.keywords.Forget(session)
}
