package authz

// SignedOut時の案内文
const (
	ActionPostQuestion     = "Sign in first to post a question"
	ActionGetAllQuestions  = "Sign in first to get all questions"
	ActionGetUserQuestions = "Sign in first to get all questions posted by a specific user"
	ActionEditQuestion     = "Sign in first to edit the question"
	ActionDeleteQuestion   = "Sign in first to delete a question"
	ActionPostAnswer       = "Sign in first to post an answer"
	ActionEditAnswer       = "Sign in first to edit an answer"
	ActionDeleteAnswer     = "Sign in first to delete an answer"
	ActionGetAnswers       = "Sign in first to get the answers"
	ActionGetUserProfile   = "Sign in first to get user details"
	ActionDeleteUser       = "Sign in first to delete a user"
)

// 権限不足時のメッセージ
const (
	DenyEditQuestion   = "Only the question owner can edit the question"
	DenyDeleteQuestion = "Only the question owner or admin can delete the question"
	DenyEditAnswer     = "Only the answer owner can edit the answer"
	DenyDeleteAnswer   = "Only the answer owner or admin can delete the answer"
	DenyDeleteUser     = "Unauthorized Access, Entered user is not an admin"
)

// コンテンツ未検出時のメッセージ
const (
	QuestionNotFound         = "Entered question uuid does not exist"
	QuestionInvalidForAnswer = "The question entered is invalid"
	QuestionNotFoundForList  = "The question with entered uuid whose details are to be seen does not exist"
	UserNotFoundForQuestions = "User with entered uuid whose question details are to be seen does not exist"
	UserNotFoundForProfile   = "User with entered uuid does not exist"
	UserNotFoundForDelete    = "User with entered uuid to be deleted does not exist"
)
