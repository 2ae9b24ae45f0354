package transport

type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateTaskRequest is the JSON form of a task without documents. The
// multipart form uses the same field names.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	AssignedTo  string `json:"assignedTo"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}
