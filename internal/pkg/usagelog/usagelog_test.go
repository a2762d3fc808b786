package usagelog

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_usage.jsonl")

	l, err := New(path)
	require.NoError(t, err)

	l.Log(Record{
		Model:        "exaone3.5:2.4b",
		UserText:     "분수가 뭐야?",
		ResponseText: "분수는 전체를 나눈 것 중 일부예요.",
		InputTokens:  12,
		OutputTokens: 20,
		TotalTokens:  32,
	})
	l.Log(Record{Model: "exaone3.5:2.4b", UserText: "곱셈은?"})

	require.NoError(t, l.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r Record
		require.NoError(t, sonic.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, "분수가 뭐야?", records[0].UserText)
	assert.Equal(t, 32, records[0].TotalTokens)
	assert.NotEmpty(t, records[0].Timestamp)

	_, err = time.Parse(time.RFC3339, records[0].Timestamp)
	assert.NoError(t, err)
}

func TestLoggerReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_usage.jsonl")

	l, err := New(path)
	require.NoError(t, err)
	l.Log(Record{Model: "m1"})
	require.NoError(t, l.Close())

	l, err = New(path)
	require.NoError(t, err)
	l.Log(Record{Model: "m2"})
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), "m1")
	assert.Contains(t, string(data), "m2")
}
