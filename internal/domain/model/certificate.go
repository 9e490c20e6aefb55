package model

import "time"

// Certificate is an issued course-completion certificate.
// At most one exists per (UserID, CourseID).
type Certificate struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Code      string    `json:"certificate_id"`
	IssueDate time.Time `json:"issue_date"`
	PDFURL    string    `json:"pdf_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
