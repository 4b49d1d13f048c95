package memory

func cloneConversational(u *ConversationalUnit) *ConversationalUnit {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func clonePersistent(u *PersistentUnit) *PersistentUnit {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Vector = u.Vector.Clone()
	if u.Relationships != nil {
		clone.Relationships = make(map[string]float64, len(u.Relationships))
		for id, affinity := range u.Relationships {
			clone.Relationships[id] = affinity
		}
	}
	clone.Metadata = cloneMetadata(u.Metadata)
	return &clone
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	clone := make(map[string]string, len(m))
	for key, value := range m {
		clone[key] = value
	}
	return clone
}
