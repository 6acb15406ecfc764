// internal/services/mapping_service.go
package services

import (
	"strings"

	"github.com/Corphon/NovelVerseMCP/internal/models"
)

// AncientIndianCities 主城候选列表，用户从中为每个故事选定唯一主城
var AncientIndianCities = []string{
	"पाटलिपुत्र", // Pataliputra (ancient Patna)
	"अयोध्या",    // Ayodhya
	"हस्तिनापुर", // Hastinapur
	"इंद्रप्रस्थ", // Indraprastha
	"उज्जैन",     // Ujjain
	"काशी",       // Kashi (Varanasi)
	"मथुरा",      // Mathura
	"द्वारका",    // Dwarka
	"कुरुक्षेत्र", // Kurukshetra
	"तक्षशिला",   // Takshashila
	"कान्यकुब्ज", // Kanyakubja (Kannauj)
	"वैशाली",     // Vaishali
	"राजगृह",     // Rajgriha
	"श्रावस्ती",  // Shravasti
	"कपिलवस्तु",  // Kapilavastu
	"गांधार",     // Gandhara
	"मगध",        // Magadha
	"कोसल",       // Kosala
	"अवंती",      // Avanti
	"चेदि",       // Chedi
}

// MappingService 实体映射的纯判定逻辑
//
// 只做过滤，不做任何交互或上下文修改；
// 提问与写入由管线负责。
type MappingService struct{}

// NewMappingService 创建映射服务
func NewMappingService() *MappingService {
	return &MappingService{}
}

// FilterNewHumanCharacters 筛选出需要命名映射的角色：
// species为human（大小写不敏感）且名字未在名册中出现过
func (s *MappingService) FilterNewHumanCharacters(chapterChars []models.Character, roster []models.Character) []models.Character {
	existing := make(map[string]bool, len(roster))
	for _, ch := range roster {
		existing[ch.Name] = true
	}

	var result []models.Character
	for _, ch := range chapterChars {
		if ch.Name == "" || existing[ch.Name] {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(ch.Species), "human") {
			continue
		}
		result = append(result, ch)
	}
	return result
}

// FilterUnmappedLocations 筛选出尚未映射到主城的地点
//
// 已存在键的地点不再返回，保证重复调用不产生变化（幂等）。
func (s *MappingService) FilterUnmappedLocations(locations []string, cityMapping map[string]string) []string {
	var result []string
	seen := make(map[string]bool, len(locations))
	for _, loc := range locations {
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		if _, mapped := cityMapping[loc]; mapped {
			continue
		}
		result = append(result, loc)
	}
	return result
}
