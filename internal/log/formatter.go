package log

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format renders an entry by substituting %time, %level, %field and %msg
// in the configured pattern.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	return []byte(output), nil
}

func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, key := range keys {
		val, ok := entry.Data[key].(string)
		if !ok {
			val = fmt.Sprint(entry.Data[key])
		}
		fields = append(fields, key+"="+val)
	}
	return strings.Join(fields, ",")
}
