package model

import "time"

// Item represents a found item logged by a guard.
type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	FoundDate   time.Time `json:"found_date"`
	Status      string    `json:"status"`
	ImageURL    string    `json:"image_url"`
	ImageID     string    `json:"image_id"`
	AddedBy     string    `json:"added_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	ClaimedBy   *ClaimedBy   `json:"claimed_by,omitempty"`
	DeliveredTo *DeliveredTo `json:"delivered_to,omitempty"`
}

// ClaimedBy records who claimed an item. All fields except StudyYear are
// required the moment an item becomes claimed.
type ClaimedBy struct {
	StudentName   string    `json:"student_name"`
	RollNumber    string    `json:"roll_number"`
	StudyYear     string    `json:"study_year,omitempty"`
	ContactNumber string    `json:"contact_number"`
	ClaimedDate   time.Time `json:"claimed_date"`
}

// DeliveredTo records the in-person handover of a claimed item.
type DeliveredTo struct {
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	StudentID    string    `json:"student_id,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	DeliveryDate time.Time `json:"delivery_date"`
}

// Item statuses. The guarded lifecycle only ever moves forward:
// available -> claimed -> delivered.
const (
	StatusAvailable = "available"
	StatusClaimed   = "claimed"
	StatusDelivered = "delivered"
)

// ValidStatus reports whether s is one of the three legal statuses.
func ValidStatus(s string) bool {
	return s == StatusAvailable || s == StatusClaimed || s == StatusDelivered
}

// Categories an item can be filed under.
var Categories = []string{
	"Electronics",
	"Clothing",
	"Study Material",
	"Accessories",
	"ID Cards",
	"Keys",
	"Other",
}

// Locations where items are typically found.
var Locations = []string{
	"Main Building",
	"Canteen Area",
	"Library",
	"Computer Lab",
	"Auditorium",
	"Sports Field",
	"Parking Lot",
	"Other",
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidLocation reports whether l is a known location.
func ValidLocation(l string) bool {
	for _, v := range Locations {
		if v == l {
			return true
		}
	}
	return false
}
