package models

import "time"

// Category groups resources by what they are used for
type Category string

const (
	CategoryMedical    Category = "medical"
	CategoryEquipment  Category = "equipment"
	CategoryVehicles   Category = "vehicles"
	CategorySupplies   Category = "supplies"
	CategoryFacilities Category = "facilities"
	CategoryPersonnel  Category = "personnel"
)

// Categories lists every known resource category
var Categories = []Category{
	CategoryMedical, CategoryEquipment, CategoryVehicles,
	CategorySupplies, CategoryFacilities, CategoryPersonnel,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// ResourceStatus is the lifecycle state of a resource
type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceDeployed    ResourceStatus = "deployed"
	ResourceMaintenance ResourceStatus = "maintenance"
	ResourceReserved    ResourceStatus = "reserved"
)

// Location is a named place with optional coordinates
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat,omitempty"`
	Lon  float64 `json:"lon,omitempty"`
}

// HasCoordinates reports whether the location can be used for ETA estimates
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lon != 0
}

// Resource represents a typed pool of emergency units owned by the agency
type Resource struct {
	ID                string         `gorm:"primaryKey" json:"id"`
	Name              string         `json:"name"`
	Category          Category       `gorm:"index;not null" json:"category"`
	Type              string         `json:"type"`
	Quantity          int            `json:"quantity"`
	AvailableQuantity int            `json:"available_quantity"`
	AllocatedQuantity int            `json:"allocated_quantity"`
	Location          Location       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Status            ResourceStatus `gorm:"index" json:"status"`
	Priority          string         `json:"priority,omitempty"`
	Condition         string         `json:"condition,omitempty"`
	Version           int64          `json:"version"`
	LastUpdated       time.Time      `json:"last_updated"`
}

// AllocationStatus is the lifecycle state of a resource allocation
type AllocationStatus string

const (
	AllocationActive   AllocationStatus = "active"
	AllocationReturned AllocationStatus = "returned"
	AllocationLost     AllocationStatus = "lost"
)

// ResourceAllocation records units of a resource committed to a request
type ResourceAllocation struct {
	ID          string           `gorm:"primaryKey" json:"id"`
	ResourceID  string           `gorm:"index" json:"resource_id"`
	AllocatedTo string           `gorm:"index" json:"allocated_to"`
	Quantity    int              `json:"quantity"`
	Status      AllocationStatus `json:"status"`
	Actor       string           `json:"actor,omitempty"`
	AllocatedAt time.Time        `json:"allocated_at"`
	ReturnedAt  *time.Time       `json:"returned_at,omitempty"`
	LostAt      *time.Time       `json:"lost_at,omitempty"`
}

// RequestStatus is the lifecycle state of a resource request
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

// SourceKind identifies which external shape a demand came from
type SourceKind string

const (
	SourceResource  SourceKind = "resource"
	SourceVolunteer SourceKind = "volunteer"
	SourceSOS       SourceKind = "sos"
)

// ResourceRequest asks for a quantity of a resource category. SOS reports
// are stored as resource requests with Source set to "sos".
type ResourceRequest struct {
	ID                 string        `gorm:"primaryKey" json:"id"`
	Source             SourceKind    `json:"source"`
	Category           Category      `json:"category"`
	Type               string        `json:"type,omitempty"`
	Quantity           int           `json:"quantity"`
	Urgency            string        `json:"urgency"`
	Location           Location      `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Status             RequestStatus `gorm:"index" json:"status"`
	FulfilledQuantity  int           `json:"fulfilled_quantity"`
	FulfillmentDetails []string      `gorm:"serializer:json" json:"fulfillment_details,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	Description        string        `json:"description,omitempty"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Outstanding returns the quantity not yet covered by allocations
func (r *ResourceRequest) Outstanding() int {
	if n := r.Quantity - r.FulfilledQuantity; n > 0 {
		return n
	}
	return 0
}

// SOSReport is an emergency report submitted from the field
type SOSReport struct {
	EmergencyType      string   `json:"emergency_type"`
	Severity           string   `json:"severity"`
	Location           Location `json:"location"`
	PeopleAffected     int      `json:"people_affected"`
	RequiredCapability string   `json:"required_capability,omitempty"`
	UnitsNeeded        int      `json:"units_needed,omitempty"`
	Description        string   `json:"description,omitempty"`
}

// VolunteerStatus is the availability state of a volunteer
type VolunteerStatus string

const (
	VolunteerAvailable   VolunteerStatus = "available"
	VolunteerDeployed    VolunteerStatus = "deployed"
	VolunteerUnavailable VolunteerStatus = "unavailable"
	VolunteerOffDuty     VolunteerStatus = "off_duty"
)

// Volunteer represents a person who can be dispatched to tasks
type Volunteer struct {
	ID                string          `gorm:"primaryKey" json:"id"`
	Name              string          `json:"name"`
	Specialty         string          `gorm:"index" json:"specialty"`
	Skills            []string        `gorm:"serializer:json" json:"skills"`
	Location          Location        `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Status            VolunteerStatus `gorm:"index" json:"status"`
	HoldUnavailable   bool            `json:"hold_unavailable,omitempty"`
	PerformanceRating *float64        `json:"performance_rating,omitempty"`
	RatingCount       int             `json:"rating_count"`
	TotalHours        float64         `json:"total_hours"`
	MaxHours          float64         `json:"max_hours"`
	AssignedHours     float64         `json:"assigned_hours"`
	Version           int64           `json:"version"`
	LastUpdated       time.Time       `json:"last_updated"`
}

// HasSkill reports whether the volunteer lists skill as specialty or skill
func (v *Volunteer) HasSkill(skill string) bool {
	if v.Specialty == skill {
		return true
	}
	for _, s := range v.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// AssignmentStatus is the lifecycle state of a volunteer assignment
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// CheckIn is the metadata captured when a volunteer reports on site
type CheckIn struct {
	At       time.Time `json:"at"`
	Location Location  `json:"location"`
	Note     string    `json:"note,omitempty"`
}

// VolunteerAssignment pairs a volunteer with a task
type VolunteerAssignment struct {
	ID          string           `gorm:"primaryKey" json:"id"`
	VolunteerID string           `gorm:"index" json:"volunteer_id"`
	TaskID      string           `gorm:"index" json:"task_id"`
	Role        string           `json:"role"`
	Status      AssignmentStatus `json:"status"`
	Actor       string           `json:"actor,omitempty"`
	AssignedAt  time.Time        `json:"assigned_at"`
	CheckIn     *CheckIn         `gorm:"serializer:json" json:"check_in,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
	Rating      *float64         `json:"rating,omitempty"`
}

// VolunteerRequestStatus is the fill state of a volunteer request
type VolunteerRequestStatus string

const (
	VolunteerRequestOpen            VolunteerRequestStatus = "open"
	VolunteerRequestPartiallyFilled VolunteerRequestStatus = "partially_filled"
	VolunteerRequestFilled          VolunteerRequestStatus = "filled"
	VolunteerRequestCancelled       VolunteerRequestStatus = "cancelled"
)

// VolunteerRequest asks for a number of volunteers with given skills
type VolunteerRequest struct {
	ID                 string                 `gorm:"primaryKey" json:"id"`
	Title              string                 `json:"title,omitempty"`
	RequiredSkills     []string               `gorm:"serializer:json" json:"required_skills"`
	NumberOfVolunteers int                    `json:"number_of_volunteers"`
	Urgency            string                 `json:"urgency"`
	Location           Location               `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Role               string                 `json:"role,omitempty"`
	Status             VolunteerRequestStatus `gorm:"index" json:"status"`
	AssignedVolunteers []string               `gorm:"serializer:json" json:"assigned_volunteers"`
	Version            int64                  `json:"version"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// FillStatus derives the request status from the assigned volunteer count
func (r *VolunteerRequest) FillStatus() VolunteerRequestStatus {
	switch {
	case r.Status == VolunteerRequestCancelled:
		return VolunteerRequestCancelled
	case len(r.AssignedVolunteers) >= r.NumberOfVolunteers:
		return VolunteerRequestFilled
	case len(r.AssignedVolunteers) > 0:
		return VolunteerRequestPartiallyFilled
	default:
		return VolunteerRequestOpen
	}
}

// Urgency is the ordinal time-criticality scale shared by all demand kinds
type Urgency int

const (
	UrgencyLow Urgency = iota + 1
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyCritical:
		return "critical"
	case UrgencyHigh:
		return "high"
	case UrgencyMedium:
		return "medium"
	case UrgencyLow:
		return "low"
	}
	return "unknown"
}

// Demand is the normalized form of any incoming request
type Demand struct {
	RequestID          string        `json:"request_id"`
	RequiredCapability string        `json:"required_capability"`
	Specialty          string        `json:"specialty,omitempty"`
	RequiredSkills     []string      `json:"required_skills,omitempty"`
	Quantity           int           `json:"quantity"`
	Urgency            Urgency       `json:"urgency"`
	UrgencyLabel       string        `json:"urgency_label"`
	Location           Location      `json:"location"`
	DeadlineHint       time.Duration `json:"deadline_hint"`
	SourceKind         SourceKind    `json:"source_kind"`
}

// Candidate is one ranked option inside a recommendation
type Candidate struct {
	CandidateID        string      `json:"candidate_id"`
	Reason             string      `json:"reason"`
	ETAMinutes         *float64    `json:"eta_minutes,omitempty"`
	EfficiencyScore    float64     `json:"efficiency_score"`
	Remaining          int         `json:"remaining"`
	SnapshotVersion    int64       `json:"snapshot_version"`
	AlternativeOptions []Candidate `json:"alternative_options,omitempty"`
}

// Recommendation is the advisory output of the matching engine
type Recommendation struct {
	RequestID       string      `json:"request_id"`
	Confidence      int         `json:"confidence"`
	Recommendations []Candidate `json:"recommendations"`
	Warnings        []string    `json:"warnings"`
	GeneratedAt     time.Time   `json:"generated_at"`
}

// ExternalSignals carries route degradation hints from outside collaborators
type ExternalSignals struct {
	WeatherDegraded bool    `json:"weather_degraded"`
	TrafficDegraded bool    `json:"traffic_degraded"`
	ETAFactor       float64 `json:"eta_factor,omitempty"`
	Note            string  `json:"note,omitempty"`
}

// ResourceStatistics is the dashboard projection over resources
type ResourceStatistics struct {
	TotalResources       int              `json:"total_resources"`
	AvailableResources   int              `json:"available_resources"`
	DeployedResources    int              `json:"deployed_resources"`
	MaintenanceResources int              `json:"maintenance_resources"`
	ReservedResources    int              `json:"reserved_resources"`
	ResourcesByCategory  map[Category]int `json:"resources_by_category"`
	CriticalResourcesLow []string         `json:"critical_resources_low"`
	AllocationRate       float64          `json:"allocation_rate"`
	TotalAllocations     int              `json:"total_allocations"`
	ActiveAllocations    int              `json:"active_allocations"`
}

// VolunteerStatistics is the dashboard projection over volunteers
type VolunteerStatistics struct {
	TotalVolunteers       int                     `json:"total_volunteers"`
	VolunteersByStatus    map[VolunteerStatus]int `json:"volunteers_by_status"`
	VolunteersBySpecialty map[string]int          `json:"volunteers_by_specialty"`
	AverageRating         float64                 `json:"average_rating"`
	TotalActiveHours      float64                 `json:"total_active_hours"`
	ActiveAssignments     int                     `json:"active_assignments"`
	FairnessScore         float64                 `json:"fairness_score"`
}
