package medical

import "time"

// ExtensionStatus 病假延长申请状态
type ExtensionStatus string

const (
	StatusPendente  ExtensionStatus = "pendente"
	StatusAprovado  ExtensionStatus = "aprovado"
	StatusRejeitado ExtensionStatus = "rejeitado"
)

// MedicalCertificate 病假证明（atestado médico）
type MedicalCertificate struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID  string    `gorm:"type:uuid;not null;index" json:"company_id"`
	UserID     string    `gorm:"type:uuid;not null;index" json:"user_id"`
	IssueDate  time.Time `gorm:"not null" json:"issue_date"`
	StartDate  time.Time `gorm:"not null;index" json:"start_date"`
	EndDate    time.Time `gorm:"not null" json:"end_date"`
	DaysCount  int       `gorm:"not null" json:"days_count"`
	DoctorCRM  string    `gorm:"size:32" json:"doctor_crm"`
	DoctorName string    `gorm:"size:255" json:"doctor_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (MedicalCertificate) TableName() string {
	return "medical_certificates"
}

// MedicalLeaveExtension 病假延长申请
// certificate_id 上的唯一约束保证每张证明至多一个延长申请
type MedicalLeaveExtension struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID       string          `gorm:"type:uuid;not null;index" json:"company_id"`
	CertificateID   string          `gorm:"type:uuid;not null;uniqueIndex:idx_extension_certificate" json:"certificate_id"`
	UserID          string          `gorm:"type:uuid;not null;index" json:"user_id"`
	ExtensionDays   int             `gorm:"not null" json:"extension_days"`
	Status          ExtensionStatus `gorm:"size:20;not null;default:pendente" json:"status"`
	ApprovedBy      string          `gorm:"type:uuid" json:"approved_by,omitempty"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName 指定表名
func (MedicalLeaveExtension) TableName() string {
	return "medical_leave_extensions"
}
