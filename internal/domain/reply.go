package domain

// ReplyRequest is everything the reply generator may use to write the closing message.
type ReplyRequest struct {
	Score     int
	Feedback  string
	History   []Message
	Sentiment SentimentResult
	Customer  *Customer
}
