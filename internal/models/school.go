package models

import "time"

// Classroom is a named homeroom group, e.g. "X TKJ 1".
type Classroom struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Code      string    `bson:"code" json:"code"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Department is a vocational major, e.g. "Teknik Komputer dan Jaringan".
type Department struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Code      string    `bson:"code" json:"code"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Course is taught by a teacher for one classroom.
type Course struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	TeacherID   string    `bson:"teacherId" json:"teacherId"`
	TeacherName string    `bson:"teacherName" json:"teacherName"`
	Classroom   string    `bson:"classroom" json:"classroom"`
	Subject     string    `bson:"subject" json:"subject"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// MaterialType enumerates supported material payloads.
type MaterialType string

const (
	MaterialText  MaterialType = "text"
	MaterialVideo MaterialType = "video"
	MaterialLink  MaterialType = "link"
	MaterialFile  MaterialType = "file"
)

// Question is one multiple-choice item. CorrectAnswer indexes Options; views
// handed to students carry -1 instead.
type Question struct {
	ID            string   `bson:"id" json:"id"`
	Text          string   `bson:"text" json:"text"`
	Options       []string `bson:"options" json:"options"`
	CorrectAnswer int      `bson:"correctAnswer" json:"correctAnswer"`
}

// Exam is a timed multiple-choice test for one classroom.
type Exam struct {
	ID        string     `bson:"_id" json:"id"`
	Title     string     `bson:"title" json:"title"`
	CourseID  string     `bson:"courseId,omitempty" json:"courseId,omitempty"`
	TeacherID string     `bson:"teacherId" json:"teacherId"`
	Classroom string     `bson:"classroom" json:"classroom"`
	Duration  int        `bson:"duration" json:"duration"` // minutes
	Questions []Question `bson:"questions" json:"questions"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
}

// StudentView returns a copy safe to hand to students: answer keys stripped.
func (e Exam) StudentView() Exam {
	questions := make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.CorrectAnswer = -1
		questions[i] = q
	}
	e.Questions = questions
	return e
}

// ExamSubmission records one student's answers, the server-computed score and
// the proctoring violation count reported by the exam client.
type ExamSubmission struct {
	ID          string    `bson:"_id" json:"id"`
	ExamID      string    `bson:"examId" json:"examId"`
	StudentID   string    `bson:"studentId" json:"studentId"`
	StudentName string    `bson:"studentName" json:"studentName"`
	Answers     []int     `bson:"answers" json:"answers"`
	Score       int       `bson:"score" json:"score"`
	Violations  int       `bson:"violations" json:"violations"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`
}

// Assignment is classroom homework with a deadline.
type Assignment struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	TeacherID   string    `bson:"teacherId" json:"teacherId"`
	TeacherName string    `bson:"teacherName" json:"teacherName"`
	Classroom   string    `bson:"classroom" json:"classroom"`
	Deadline    time.Time `bson:"deadline" json:"deadline"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// AssignmentSubmission is one student's turned-in work. Grade and Feedback
// stay unset until the teacher grades it.
type AssignmentSubmission struct {
	ID           string     `bson:"_id" json:"id"`
	AssignmentID string     `bson:"assignmentId" json:"assignmentId"`
	StudentID    string     `bson:"studentId" json:"studentId"`
	StudentName  string     `bson:"studentName" json:"studentName"`
	Content      string     `bson:"content" json:"content"`
	SubmittedAt  time.Time  `bson:"submittedAt" json:"submittedAt"`
	Grade        *int       `bson:"grade,omitempty" json:"grade,omitempty"`
	Feedback     string     `bson:"feedback,omitempty" json:"feedback,omitempty"`
	GradedAt     *time.Time `bson:"gradedAt,omitempty" json:"gradedAt,omitempty"`
}

// Material is a unit of course content.
type Material struct {
	ID        string       `bson:"_id" json:"id"`
	CourseID  string       `bson:"courseId" json:"courseId"`
	Title     string       `bson:"title" json:"title"`
	Content   string       `bson:"content" json:"content"`
	Type      MaterialType `bson:"type" json:"type"`
	FileURL   string       `bson:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	CreatedAt time.Time    `bson:"createdAt" json:"createdAt"`
}
