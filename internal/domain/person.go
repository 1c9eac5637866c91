package domain

import "github.com/google/uuid"

// Person is a typed view over a memory with type=person. Custom field values
// are stored alongside the typed fields, keyed "<module>.<fieldKey>".
type Person struct {
	ID           string         `json:"id"`
	MemoryID     uuid.UUID      `json:"memory_id"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName,omitempty"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	HouseholdID  string         `json:"householdId,omitempty"`
	Roles        []string       `json:"roles,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

// Household groups people; members reference it by householdId.
type Household struct {
	ID       string    `json:"id"`
	MemoryID uuid.UUID `json:"memory_id"`
	Name     string    `json:"name"`
	Address  string    `json:"address,omitempty"`
}

// Attendance records one person's presence at a dated event.
type Attendance struct {
	ID       string    `json:"id"`
	MemoryID uuid.UUID `json:"memory_id"`
	PersonID string    `json:"personId"`
	Event    string    `json:"event"`
	Date     string    `json:"date"`
	Present  bool      `json:"present"`
}

func (p Person) ToMetadata() Metadata {
	md := Metadata{
		"type":      KindPerson,
		"id":        p.ID,
		"firstName": p.FirstName,
	}
	if p.LastName != "" {
		md["lastName"] = p.LastName
	}
	if p.Email != "" {
		md["email"] = p.Email
	}
	if p.Phone != "" {
		md["phone"] = p.Phone
	}
	if p.HouseholdID != "" {
		md["householdId"] = p.HouseholdID
	}
	if len(p.Roles) > 0 {
		md["roles"] = p.Roles
	}
	for k, v := range p.CustomFields {
		md[k] = v
	}
	return md
}

func PersonFromMemory(m *Memory) Person {
	p := Person{
		ID:          m.Metadata.String("id"),
		MemoryID:    m.ID,
		FirstName:   m.Metadata.String("firstName"),
		LastName:    m.Metadata.String("lastName"),
		Email:       m.Metadata.String("email"),
		Phone:       m.Metadata.String("phone"),
		HouseholdID: m.Metadata.String("householdId"),
		Roles:       m.Metadata.StringSlice("roles"),
	}
	for k, v := range m.Metadata {
		// Namespaced custom-field values carry a "<module>." prefix.
		for i := 0; i < len(k); i++ {
			if k[i] == '.' {
				if p.CustomFields == nil {
					p.CustomFields = make(map[string]any)
				}
				p.CustomFields[k] = v
				break
			}
		}
	}
	return p
}

func (h Household) ToMetadata() Metadata {
	md := Metadata{
		"type": KindHousehold,
		"id":   h.ID,
		"name": h.Name,
	}
	if h.Address != "" {
		md["address"] = h.Address
	}
	return md
}

func HouseholdFromMemory(m *Memory) Household {
	return Household{
		ID:       m.Metadata.String("id"),
		MemoryID: m.ID,
		Name:     m.Metadata.String("name"),
		Address:  m.Metadata.String("address"),
	}
}

func (a Attendance) ToMetadata() Metadata {
	return Metadata{
		"type":     KindAttendance,
		"id":       a.ID,
		"personId": a.PersonID,
		"event":    a.Event,
		"date":     a.Date,
		"present":  a.Present,
	}
}

func AttendanceFromMemory(m *Memory) Attendance {
	present, _ := m.Metadata["present"].(bool)
	return Attendance{
		ID:       m.Metadata.String("id"),
		MemoryID: m.ID,
		PersonID: m.Metadata.String("personId"),
		Event:    m.Metadata.String("event"),
		Date:     m.Metadata.String("date"),
		Present:  present,
	}
}
