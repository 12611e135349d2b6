package share

import (
	"time"

	"github.com/google/uuid"
)

// Grant is a share of one file with one grantee.
type Grant struct {
	ID         uuid.UUID  `json:"id"`
	FileID     uuid.UUID  `json:"file_id"`
	GranteeID  uuid.UUID  `json:"grantee_id"`
	Permission Permission `json:"permission"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Recipient is a grant as seen by the file owner.
type Recipient struct {
	GranteeID       uuid.UUID  `json:"grantee_id"`
	GranteeUsername string     `json:"grantee_username"`
	Permission      Permission `json:"permission"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Shared is a grant as seen by the grantee, with file and owner denormalized.
type Shared struct {
	FileID           uuid.UUID  `json:"file_id"`
	OriginalFilename string     `json:"filename"`
	SizeBytes        int64      `json:"size"`
	ContentType      string     `json:"content_type"`
	FileCreatedAt    time.Time  `json:"file_created_at"`
	OwnerID          uuid.UUID  `json:"owner_id"`
	OwnerUsername    string     `json:"owner_username"`
	Permission       Permission `json:"permission"`
	SharedAt         time.Time  `json:"shared_at"`
}

// Stats summarizes sharing activity for one user.
type Stats struct {
	FilesYouShared        int64 `json:"files_you_shared"`
	FilesSharedWithYou    int64 `json:"files_shared_with_you"`
	UsersWhoSharedWithYou int64 `json:"users_who_shared_with_you"`
	UsersYouSharedWith    int64 `json:"users_you_shared_with"`
}

// BulkItem is one successful grant in a bulk request.
type BulkItem struct {
	FileID     uuid.UUID  `json:"file_id"`
	Filename   string     `json:"filename"`
	Username   string     `json:"username"`
	GranteeID  uuid.UUID  `json:"grantee_id"`
	Permission Permission `json:"permission"`
}

// BulkIssue is one failed or skipped pair in a bulk request.
type BulkIssue struct {
	FileID   uuid.UUID `json:"file_id"`
	Username string    `json:"username,omitempty"`
	Reason   string    `json:"reason"`
}

// BulkResult buckets every (file, username) pair of a bulk request.
type BulkResult struct {
	Created []BulkItem  `json:"created"`
	Updated []BulkItem  `json:"updated"`
	Failed  []BulkIssue `json:"failed"`
	Skipped []BulkIssue `json:"skipped"`
}

// Succeeded counts created and updated grants.
func (r BulkResult) Succeeded() int {
	return len(r.Created) + len(r.Updated)
}
