package catalog

// ══════════════════════════════════════════════════════════════════════════════
// COURSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// CourseDTO is a course as the catalog service returns it.
type CourseDTO struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	UnitCount int       `json:"unit_count"`
	Units     []UnitDTO `json:"units,omitempty"`
}

// UnitDTO is a single trackable unit of a course.
type UnitDTO struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTOs
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO is the catalog service's error envelope.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
