package knowledge

import (
	"path"
	"regexp"
	"strings"
)

// ImageRef 分节引用的图片
type ImageRef struct {
	Path    string
	AltText string
}

// ParsedSection 解析出的分节
type ParsedSection struct {
	Title     string
	Content   string
	Order     int
	HasCode   bool
	HasImages bool
	Images    []ImageRef
}

// ParsedDocument 解析后的完整文档
type ParsedDocument struct {
	FilePath    string
	Title       string
	URL         string
	Breadcrumb  []string
	ContentHash string
	Sections    []ParsedSection
}

var (
	mdTitleRe   = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	htmlTitleRe = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	htmlH2Re    = regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`)
	htmlH3Re    = regexp.MustCompile(`(?is)<h3[^>]*>(.*?)</h3>`)
	headingRe   = regexp.MustCompile(`(?m)^(##|###)\s+(.+)$`)
	mdImageRe   = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	htmlImageRe = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["'][^>]*?(?:alt=["']([^"']*)["'])?[^>]*>`)
)

// MarkdownParser 将markdown源文解析为结构化文档
type MarkdownParser struct {
	docsBaseURL string
	corpusPath  string
}

// NewMarkdownParser 创建markdown解析器
func NewMarkdownParser(docsBaseURL, corpusPath string) *MarkdownParser {
	return &MarkdownParser{
		docsBaseURL: strings.TrimSuffix(docsBaseURL, "/"),
		corpusPath:  strings.TrimSuffix(corpusPath, "/"),
	}
}

// Parse 解析文档内容。相同输入必然产生相同的分节序列。
func (p *MarkdownParser) Parse(filePath, content string) *ParsedDocument {
	return &ParsedDocument{
		FilePath:    filePath,
		Title:       p.extractTitle(content),
		URL:         p.buildURL(filePath),
		Breadcrumb:  p.buildBreadcrumb(filePath),
		ContentHash: HashText(content),
		Sections:    p.parseSections(content),
	}
}

// extractTitle 提取文档标题，优先markdown H1，其次HTML H1
func (p *MarkdownParser) extractTitle(content string) string {
	if m := mdTitleRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := htmlTitleRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(htmlTagRe.ReplaceAllString(m[1], ""))
	}
	return "Untitled"
}

// buildBreadcrumb 从文件路径构建目录层级
func (p *MarkdownParser) buildBreadcrumb(filePath string) []string {
	rel := filePath
	if p.corpusPath != "" && strings.HasPrefix(filePath, p.corpusPath+"/") {
		rel = strings.TrimPrefix(filePath, p.corpusPath+"/")
	}
	dir := path.Dir(rel)
	if dir == "." || dir == "/" {
		return nil
	}
	return strings.Split(dir, "/")
}

// buildURL 从文件路径构建文档站点URL
func (p *MarkdownParser) buildURL(filePath string) string {
	if p.docsBaseURL == "" {
		return ""
	}
	rel := filePath
	if p.corpusPath != "" && strings.HasPrefix(filePath, p.corpusPath+"/") {
		rel = strings.TrimPrefix(filePath, p.corpusPath+"/")
	}
	htmlPath := strings.TrimSuffix(rel, ".md") + ".html"
	return p.docsBaseURL + "/" + htmlPath
}

// parseSections 按H2/H3标题切分正文
func (p *MarkdownParser) parseSections(content string) []ParsedSection {
	// HTML标题转为markdown形式，统一切分逻辑
	content = htmlH2Re.ReplaceAllString(content, "\n## $1\n")
	content = htmlH3Re.ReplaceAllString(content, "\n### $1\n")

	var sections []ParsedSection
	locs := headingRe.FindAllStringSubmatchIndex(content, -1)

	appendSection := func(title, body string) {
		body = strings.TrimSpace(body)
		if title == "" && body == "" {
			return
		}
		sections = append(sections, p.buildSection(title, body, len(sections)))
	}

	if len(locs) == 0 {
		appendSection("", content)
		return sections
	}

	// 首个标题之前的引言部分
	if intro := content[:locs[0][0]]; strings.TrimSpace(intro) != "" {
		appendSection("", intro)
	}

	for i, loc := range locs {
		title := strings.TrimSpace(content[loc[4]:loc[5]])
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		appendSection(title, content[loc[1]:end])
	}

	return sections
}

// buildSection 构建分节并识别代码块与图片
func (p *MarkdownParser) buildSection(title, body string, order int) ParsedSection {
	images := extractImages(body)
	return ParsedSection{
		Title:     title,
		Content:   body,
		Order:     order,
		HasCode:   strings.Contains(body, "```"),
		HasImages: len(images) > 0,
		Images:    images,
	}
}

// extractImages 提取markdown与HTML两种形式的图片引用
func extractImages(content string) []ImageRef {
	var images []ImageRef
	for _, m := range mdImageRe.FindAllStringSubmatch(content, -1) {
		images = append(images, ImageRef{Path: m[2], AltText: m[1]})
	}
	for _, m := range htmlImageRe.FindAllStringSubmatch(content, -1) {
		images = append(images, ImageRef{Path: m[1], AltText: m[2]})
	}
	return images
}
