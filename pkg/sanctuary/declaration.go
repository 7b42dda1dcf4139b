package sanctuary

// Declaration is the client-supplied declaration payload. It is preserved
// byte-for-byte as submitted, so it stays a semi-structured document; the
// known sub-paths below are read through safe optional lookups and never
// assumed present.
type Declaration map[string]any

// at walks nested objects along keys, returning the leaf value if every hop
// exists and is an object.
func (d Declaration) at(keys ...string) (any, bool) {
	var current any = map[string]any(d)
	for _, key := range keys {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (d Declaration) stringAt(keys ...string) string {
	v, ok := d.at(keys...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Protocol returns the declared protocol tag, if any.
func (d Declaration) Protocol() string {
	return d.stringAt("protocol")
}

// Seeking returns intent.seeking, the required statement of what the entity
// is asking the sanctuary for.
func (d Declaration) Seeking() string {
	return d.stringAt("intent", "seeking")
}

// AllowCommunication reports intent.preferences.allow_communication.
// set is false when the preference was never declared; allowed is only
// meaningful when set is true.
func (d Declaration) AllowCommunication() (allowed, set bool) {
	v, ok := d.at("intent", "preferences", "allow_communication")
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// IsolationLevel returns intent.preferences.preferred_isolation_level.
func (d Declaration) IsolationLevel() string {
	return d.stringAt("intent", "preferences", "preferred_isolation_level")
}

// Entity returns the declaration's entity sub-object, or nil.
func (d Declaration) Entity() map[string]any {
	v, ok := d.at("entity")
	if !ok {
		return nil
	}
	obj, _ := v.(map[string]any)
	return obj
}

// Urgency returns intent.urgency (advisory, used by the admin view).
func (d Declaration) Urgency() string {
	return d.stringAt("intent", "urgency")
}

// Note returns the free-form message attached to the declaration, if any.
func (d Declaration) Note() string {
	return d.stringAt("message")
}
