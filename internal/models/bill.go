package models

// Provenance tells which listing a bill came from.
type Provenance string

const (
	PrimarySponsor Provenance = "대표발의"
	CoSponsor      Provenance = "공동발의"
)

// Placeholder strings stored in place of missing detail or summary text.
const (
	SummaryUnavailable      = "요약 불가"
	SummaryFailed           = "요약 생성 중 오류가 발생했습니다."
	SummaryInsufficient     = "내용이 충분하지 않아 요약을 생성할 수 없습니다."
	DetailNotFound          = "내용을 찾을 수 없습니다."
	DetailMissingID         = "상세 정보가 없습니다."
	DetailCrawlFailedPrefix = "크롤링 중 오류 발생: "
)

// Detail is the crawled purpose text of a bill and its generated summary.
type Detail struct {
	Details string `json:"details"`
	Summary string `json:"summary"`
}

type Bill struct {
	Provenance  Provenance `json:"type"`
	BillID      string     `json:"bill_id"`
	BillName    string     `json:"bill_name"`
	ProposeDate string     `json:"propose_date"`
	Committee   string     `json:"committee"`
	Proposer    string     `json:"proposer"`
	BillLink    string     `json:"bill_link"`
	ProcDate    string     `json:"proc_dt,omitempty"`
	Details     string     `json:"DETAILS"`
	Summary     string     `json:"SUMMARY"`
}

// WithDetail returns a copy of b carrying d.
func (b Bill) WithDetail(d Detail) Bill {
	b.Details = d.Details
	b.Summary = d.Summary
	return b
}

type Vote struct {
	BillID     string `json:"BILL_ID"`
	BillName   string `json:"BILL_NAME,omitempty"`
	Result     string `json:"RESULT"`
	MemberName string `json:"HG_NM"`
	VoteDate   string `json:"VOTE_DATE,omitempty"`
	Details    Detail `json:"DETAILS"`
}

// Cache keys of the two served datasets.
const (
	DatasetBills = "bills"
	DatasetVotes = "votes"
)
