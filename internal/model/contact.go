package model

import "time"

// Contact represents a message submitted via the contact form.
type Contact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactInput carries the sanitised fields of a new contact submission.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ListOptions carries pagination parameters for listing contacts.
type ListOptions struct {
	Limit  int
	Offset int
}

// ContactPage is one page of contacts plus pagination metadata.
type ContactPage struct {
	Contacts   []*Contact
	Total      int64
	Page       int
	TotalPages int
}
