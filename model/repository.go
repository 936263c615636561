package model

// LastCommit is the most recent commit of a repository
// Date is humanized relative to now, eg "3 days ago"
type LastCommit struct {
	Link    string `json:"link"`
	Date    string `json:"date"`
	Message string `json:"message"`
}
