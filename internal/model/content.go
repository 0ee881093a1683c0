package model

import "time"

// Question はユーザーが投稿した質問を表す。
type Question struct {
	ID        string
	Content   string
	UserID    string
	CreatedAt time.Time
}

// Answer は質問に対する回答を表す。
type Answer struct {
	ID         string
	Content    string
	UserID     string
	QuestionID string
	CreatedAt  time.Time
}

// AnswerWithQuestion は回答と親質問の本文を結合した構造体。
type AnswerWithQuestion struct {
	Answer
	QuestionContent string
}
