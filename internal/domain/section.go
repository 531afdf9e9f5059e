package domain

// Section es contenido de curso de solo lectura usado como contexto del chat.
type Section struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"courseId"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}
