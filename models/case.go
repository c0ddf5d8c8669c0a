package models

// Chat status values for a case thread. SlowmodeSeconds is only meaningful while
// chatStatus is slowmode and is zeroed whenever the status moves off slowmode.
const (
	ChatStatusOpen     = "open"
	ChatStatusSlowmode = "slowmode"
	ChatStatusClosed   = "closed"
)

// Case holds the structure for the case collection in mongo. A case is the
// missing-person report a chat thread hangs off of; the report CRUD itself is
// owned by the main API, this service only reads it and flips the chat fields.
type Case struct {
	ID      string      `json:"_id" bson:"_id"`
	Details CaseDetails `json:"case" bson:"case"`
	Version int32       `json:"__v" bson:"__v"`
}

// CaseDetails holds the structure for the inner case structure as defined in the
// case collection in mongo
type CaseDetails struct {
	Title           string      `json:"title" bson:"title"`
	Description     string      `json:"description" bson:"description"`
	Status          string      `json:"status" bson:"status"`
	CreatedByID     string      `json:"createdByID" bson:"createdByID"`
	ChatStatus      string      `json:"chatStatus" bson:"chatStatus"`
	SlowmodeSeconds int         `json:"slowmodeSeconds" bson:"slowmodeSeconds"`
	CreatedAt       interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt       interface{} `json:"updatedAt" bson:"updatedAt"`
}
