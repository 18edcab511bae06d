package templates

// NoticeView is the content of a billing notice email.
// Notice renders it with every value escaped.
type NoticeView struct {
	Product string
	Heading string
	Lines   []string
	Support string
}
