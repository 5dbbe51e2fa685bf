package presence

import "strings"

// PositionRule maps positions containing Keyword to RoomID.
type PositionRule struct {
	Keyword string
	RoomID  int64
}

// DefaultRules is the built-in position vocabulary: the four offices of the
// site, with and without diacritics where staff commonly omit them.
func DefaultRules() []PositionRule {
	return []PositionRule{
		{Keyword: "kinh doanh", RoomID: 1},
		{Keyword: "marketing", RoomID: 2},
		{Keyword: "kế toán", RoomID: 3},
		{Keyword: "ke toan", RoomID: 3},
		{Keyword: "nhân sự", RoomID: 4},
		{Keyword: "nhan su", RoomID: 4},
	}
}

// RoomMapper resolves a free-text position to a room.
//
// Matching is a substring test on the trimmed, lower-cased position.
// Diacritics are significant: "kế toán" and "ke toan" are distinct keywords.
// Rules are tried in order and the first match wins.
type RoomMapper struct {
	rules []PositionRule
}

// NewRoomMapper creates a mapper over rules. An empty rule set falls back to
// DefaultRules.
func NewRoomMapper(rules []PositionRule) *RoomMapper {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	normalised := make([]PositionRule, 0, len(rules))
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			continue
		}
		normalised = append(normalised, PositionRule{Keyword: kw, RoomID: r.RoomID})
	}
	return &RoomMapper{rules: normalised}
}

// Map returns the room for position, or false when no rule matches.
func (m *RoomMapper) Map(position string) (int64, bool) {
	p := strings.ToLower(strings.TrimSpace(position))
	if p == "" {
		return 0, false
	}
	for _, r := range m.rules {
		if strings.Contains(p, r.Keyword) {
			return r.RoomID, true
		}
	}
	return 0, false
}

// MapPtr is Map returning nil for no match.
func (m *RoomMapper) MapPtr(position string) *int64 {
	if id, ok := m.Map(position); ok {
		return &id
	}
	return nil
}
