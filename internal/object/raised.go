package object

import "fmt"

// Raised carries a guest exception across Go call boundaries. The Value is
// the very object the guest raised; handlers compare it by identity.
type Raised struct {
	Value Value
}

func (r *Raised) Error() string {
	if in, ok := r.Value.(*Instance); ok {
		if msg, ok := in.Fields["message"].(*String); ok {
			return fmt.Sprintf("%s: %s", in.TypeName, msg.Value)
		}
		return in.TypeName
	}
	return fmt.Sprintf("raised %s", r.Value.Inspect())
}

// NewException builds an exception instance with a message field.
func NewException(typeName, message string) *Instance {
	in := NewInstance(typeName)
	in.Fields["message"] = NewString(message)
	return in
}
