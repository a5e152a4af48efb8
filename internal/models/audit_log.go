package models

// AuditLogModel records an administrative action.
type AuditLogModel struct {
	Base
	Action string `json:"action" gorm:"type:varchar(64);index"`
	Actor  string `json:"actor"  gorm:"type:varchar(128);index"`
	Target string `json:"target" gorm:"type:varchar(255)"`
	Status string `json:"status" gorm:"type:varchar(16);index"`
	Detail string `json:"detail" gorm:"type:longtext"`
	IP     string `json:"ip"     gorm:"type:varchar(64)"`
}

func (AuditLogModel) TableName() string { return "audit_logs" }
