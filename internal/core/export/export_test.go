package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var exportedAt = time.Date(2025, 4, 2, 15, 4, 5, 0, time.UTC)

func testSession() models.ChatSession {
	s := models.NewChatSession("srv-42", exportedAt)
	s.Title = "Password reset"
	return s
}

func testMessages() []models.Message {
	return []models.Message{
		models.NewMessage(models.RoleUser, "How do I reset my password?"),
		models.NewMessage(models.RoleBot, "Visit the <b>IT portal</b> &amp; follow the steps."),
	}
}

func testDocument(t *testing.T) Document {
	t.Helper()
	doc, err := NewDocument(testSession(), testMessages(), "{{title}} ({{session_id}})", exportedAt)
	require.NoError(t, err)
	return doc
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"pdf", "pdf"},
		{"txt", "txt"},
		{"text", "txt"},
		{"md", "md"},
		{"markdown", "md"},
		{"yaml", "yaml"},
		{"yml", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := NewExporter(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, exp.Extension())
		})
	}

	_, err := NewExporter("docx")
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	live := []models.Message{models.NewMessage(models.RoleUser, "live")}
	stored := []models.Message{models.NewMessage(models.RoleUser, "stored")}

	assert.Equal(t, live, Select(live, stored))
	assert.Equal(t, stored, Select(nil, stored))
	assert.Empty(t, Select(nil, nil))
}

func TestNewDocument(t *testing.T) {
	doc := testDocument(t)

	assert.Equal(t, "Password reset (srv-42)", doc.Heading)
	require.Len(t, doc.Lines, 2)
	assert.Equal(t, "User", doc.Lines[0].Label)
	assert.Equal(t, "Bot", doc.Lines[1].Label)
	assert.Equal(t, "Visit the IT portal & follow the steps.", doc.Lines[1].Text)
}

func TestNewDocumentHeadingIsNotEscaped(t *testing.T) {
	s := testSession()
	s.Title = "Q&A <draft>"
	doc, err := NewDocument(s, testMessages(), "{{title}} - {{message_count}} messages", exportedAt)
	require.NoError(t, err)
	assert.Equal(t, "Q&A <draft> - 2 messages", doc.Heading)
}

func TestNewDocumentEmpty(t *testing.T) {
	_, err := NewDocument(testSession(), nil, "", exportedAt)
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	// placeholders and markup-only messages do not count
	_, err = NewDocument(testSession(), []models.Message{
		models.NewMessage(models.RoleBot, ""),
		models.NewMessage(models.RoleBot, "<br/>"),
	}, "", exportedAt)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestTextRoundTrip(t *testing.T) {
	msgs := []models.Message{
		models.NewMessage(models.RoleUser, "How do I reset my password?"),
		models.NewMessage(models.RoleBot, "Visit the IT portal."),
		models.NewMessage(models.RoleUser, "شكرا"),
		models.NewMessage(models.RoleBot, "Line one\nline two"),
	}
	doc, err := NewDocument(testSession(), msgs, "", exportedAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, (&TextExporter{}).Export(doc, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "User: How do I reset my password?\nBot: Visit the IT portal.\n"))

	assert.Equal(t, msgs, ParseText(buf.String()))
}

func TestMarkdownExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(testDocument(t), &buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Password reset (srv-42)\n"))
	assert.Contains(t, out, "**Messages:** 2")
	assert.Contains(t, out, "**User:**\n\nHow do I reset my password?")
	assert.Equal(t, "a \\*\\*b\\*\\*\n```\n**kept**\n```", escapeMarkdown("a **b**\n```\n**kept**\n```"))
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLExporter{}).Export(testDocument(t), &buf))

	var decoded struct {
		SessionID string `yaml:"session_id"`
		Messages  []struct {
			Role string `yaml:"role"`
			Text string `yaml:"text"`
		} `yaml:"messages"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "srv-42", decoded.SessionID)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "bot", decoded.Messages[1].Role)
}

func TestPDFExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PDFExporter{}).Export(testDocument(t), &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPDFPaginates(t *testing.T) {
	var msgs []models.Message
	for i := 0; i < 120; i++ {
		msgs = append(msgs, models.NewMessage(models.RoleUser, strings.Repeat("word ", 30)))
	}
	doc, err := NewDocument(testSession(), msgs, "", exportedAt)
	require.NoError(t, err)

	pdf := buildPDF(doc)
	require.NoError(t, pdf.Error())
	assert.Greater(t, pdf.PageCount(), 1)
}

func TestPDFKeepsArabic(t *testing.T) {
	msgs := []models.Message{
		models.NewMessage(models.RoleUser, "كيف أعيد تعيين كلمة المرور؟"),
		models.NewMessage(models.RoleBot, "زر بوابة IT portal ثم اتبع الخطوات"),
	}
	doc, err := NewDocument(testSession(), msgs, "", exportedAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, (&PDFExporter{}).Export(doc, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "/BaseFont /utf8dejavu")
}

func TestVisualOrder(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"latin only", "hello world", "hello world"},
		{"arabic reversed", "سلام", "مالس"},
		{"arabic words", "سلام عليكم", "مكيلع مالس"},
		{"latin phrase kept", "زر IT portal الآن", "نآلا IT portal رز"},
		{"digits kept", "غرفة 204", "204 ةفرغ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, visualOrder(tt.in))
		})
	}
}

func TestWrapLines(t *testing.T) {
	lines := wrapLines("User: "+strings.Repeat("x", 200), 90)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 90)
	}
	assert.Equal(t, []string{"short"}, wrapLines("short", 90))
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := WriteFile(dir, "srv-42", "txt", testDocument(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "srv-42.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Bot: Visit the IT portal & follow the steps.")
}

func TestWriteFileEmptyProducesNothing(t *testing.T) {
	dir := t.TempDir()

	_, err := WriteFile(dir, "srv-42", "pdf", Document{SessionID: "srv-42"})
	assert.True(t, errors.Is(err, ErrEmptyTranscript))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a_b", fileName("a/b"))
	assert.Equal(t, "chat", fileName(".."))
	assert.Equal(t, "1712345678901", fileName("1712345678901"))
}
