package registry

// Schema is a JSON Schema document kept in decoded form.
type Schema map[string]interface{}

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one job type served by the worker manager: the BPMN
// task type it subscribes to, the shape of its variables and the error
// codes it can throw into the process.
type Activity struct {
	TaskType    string   `json:"taskType"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Version     string   `json:"version"`
	Input       Schema   `json:"inputSchema,omitempty"`
	Output      Schema   `json:"outputSchema,omitempty"`
	ErrorCodes  []string `json:"errorCodes"`
	Timeout     string   `json:"timeout"` // Go duration
	Retries     int      `json:"retries"`
	Processes   []string `json:"workflows,omitempty"`
}

// Throws reports whether code is one of the activity's declared BPMN errors.
func (a Activity) Throws(code string) bool {
	for _, c := range a.ErrorCodes {
		if c == code {
			return true
		}
	}
	return false
}
