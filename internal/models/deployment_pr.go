package models

// DeploymentPR records that a pull request's merge commit shipped in a
// deployment. Rows are append-only; duplicate inserts are dropped on the
// composite primary key.
type DeploymentPR struct {
	DeploymentID int64 `gorm:"primaryKey;autoIncrement:false" json:"deploymentId"`
	PRID         int64 `gorm:"column:pr_id;primaryKey;autoIncrement:false" json:"prId"`

	Deployment  *Deployment  `gorm:"foreignKey:DeploymentID;references:DeploymentID" json:"-"`
	PullRequest *PullRequest `gorm:"foreignKey:PRID;references:PRID" json:"-"`
}

func (DeploymentPR) TableName() string { return "deployment_prs" }
