package preset

import "slices"

// Preset - 화면의 선택 칩 하나 (Value "" 는 제약 없음)
type Preset struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Field - 프리셋이 적용되는 선택 항목
type Field string

const (
	FieldGender      Field = "gender"
	FieldNationality Field = "nationality"
	FieldPose        Field = "pose"
	FieldHair        Field = "hair"
	FieldTop         Field = "top"
	FieldBottom      Field = "bottom"
	FieldShoe        Field = "shoe"
	FieldBackground  Field = "background"
	FieldView        Field = "view"
	FieldAspectRatio Field = "aspectRatio"
)

// DefaultAge - 나이 입력 기본값
const DefaultAge = "25"

var genderPresets = []Preset{
	{Label: "기본", Value: ""},
	{Label: "남성", Value: "male"},
	{Label: "여성", Value: "female"},
	{Label: "논바이너리", Value: "non-binary person"},
}

var nationalityPresets = []Preset{
	{Label: "기본", Value: ""},
	{Label: "한국인", Value: "Korean"},
	{Label: "미국인", Value: "American"},
	{Label: "일본인", Value: "Japanese"},
	{Label: "중국인", Value: "Chinese"},
	{Label: "유럽인", Value: "European"},
}

var posePresets = []Preset{
	{Label: "Standing", Value: "in a confident standing pose"},
	{Label: "Sitting", Value: "sitting casually on a chair"},
	{Label: "Action", Value: "in a dynamic action pose, ready for battle"},
	{Label: "Thinking", Value: "in a thoughtful pose, with a hand on their chin"},
	{Label: "Leaning", Value: "leaning casually against a wall"},
	{Label: "Walking", Value: "walking towards the camera with a slight smile"},
}

var hairPresets = []Preset{
	{Label: "기본", Value: ""},
	{Label: "긴 생머리", Value: "with long, flowing hair"},
	{Label: "짧은 스파이크", Value: "with short, spiky hair"},
	{Label: "땋은 머리", Value: "with intricate braids"},
	{Label: "포니테일", Value: "with a high ponytail"},
	{Label: "모호크", Value: "with a colorful mohawk"},
	{Label: "아프로", Value: "with a big, curly afro"},
	{Label: "슬릭백", Value: "with slicked back hair"},
	{Label: "번 헤어", Value: "with a messy bun"},
	{Label: "무지개 색", Value: "with vibrant, rainbow-colored hair"},
	{Label: "드레드락", Value: "with long dreadlocks"},
}

var topPresets = []Preset{
	{Label: "기본", Value: ""},
	{Label: "가죽 재킷", Value: "wearing a cool leather jacket"},
	{Label: "후드티", Value: "wearing a comfortable hoodie"},
	{Label: "그래픽 티셔츠", Value: "wearing a graphic t-shirt"},
	{Label: "실크 블라우스", Value: "wearing an elegant silk blouse"},
	{Label: "탱크탑", Value: "wearing a simple tank top"},
	{Label: "니트 스웨터", Value: "wearing a cozy knit sweater"},
	{Label: "버튼업 셔츠", Value: "wearing a formal button-up shirt"},
	{Label: "중세 갑옷", Value: "wearing shiny medieval armor"},
	{Label: "SF 조끼", Value: "wearing a futuristic sci-fi vest"},
	{Label: "턱시도 재킷", Value: "wearing a classy tuxedo jacket"},
}

var bottomPresets = []Preset{
	{Label: "기본", Value: ""},
	{Label: "찢어진 청바지", Value: "wearing ripped denim jeans"},
	{Label: "카고 반바지", Value: "wearing cargo shorts"},
	{Label: "플리츠 스커트", Value: "wearing a pleated skirt"},
	{Label: "패턴 레깅스", Value: "wearing patterned leggings"},
	{Label: "정장 바지", Value: "wearing tailored trousers"},
	{Label: "트레이닝 바지", Value: "wearing loose sweatpants"},
	{Label: "사이버펑크 바지", Value: "wearing cyberpunk-style pants with neon details"},
	{Label: "기사 각반", Value: "wearing medieval leg armor"},
	{Label: "스카치 킬트", Value: "wearing a traditional Scottish kilt"},
	{Label: "나팔바지", Value: "wearing 70s style bell-bottoms"},
}

var shoePresets = []Preset{
	{Label: "기본", Value: ""},
	{Label: "하이탑 스니커즈", Value: "wearing high-top sneakers"},
	{Label: "컴뱃 부츠", Value: "wearing heavy-duty combat boots"},
	{Label: "하이힐", Value: "wearing sparkling high heels"},
	{Label: "가죽 샌들", Value: "wearing leather sandals"},
	{Label: "로퍼", Value: "wearing classic loafers"},
	{Label: "카우보이 부츠", Value: "wearing cowboy boots with spurs"},
	{Label: "우주 부츠", Value: "wearing futuristic space boots"},
	{Label: "플립플랍", Value: "wearing casual flip-flops"},
	{Label: "플랫폼 슈즈", Value: "wearing chunky platform shoes"},
	{Label: "운동화", Value: "wearing athletic running shoes"},
}

var backgroundPresets = []Preset{
	{Label: "기본", Value: ""},
	{Label: "해변", Value: "on a sunny beach with waves in the background"},
	{Label: "지하철", Value: "inside a modern subway car"},
	{Label: "도시 야경", Value: "on a rooftop overlooking a neon-lit city at night"},
	{Label: "숲", Value: "in a dense, magical forest with sunbeams filtering through"},
	{Label: "카페", Value: "in a cozy, stylish coffee shop"},
	{Label: "사이버펑크 도시", Value: "in a futuristic, rain-slicked cyberpunk city street"},
	{Label: "판타지 성", Value: "in front of a grand, medieval fantasy castle"},
	{Label: "우주선 내부", Value: "inside the bridge of a sleek spaceship"},
	{Label: "미니멀리스트 스튜디오", Value: "in a clean, minimalist white studio"},
}

var viewPresets = []Preset{
	{Label: "Selfie", Value: "a selfie"},
	{Label: "Front View", Value: "front view"},
	{Label: "Back View", Value: "view from the back"},
	{Label: "Side Profile", Value: "side profile"},
	{Label: "Full Body", Value: "full body shot"},
	{Label: "Close-up", Value: "close-up shot of the face"},
	{Label: "Low Angle", Value: "from a low angle"},
	{Label: "High Angle", Value: "from a high angle"},
	{Label: "Point of View", Value: "point of view (POV)"},
	{Label: "Action Shot", Value: "dynamic action shot"},
}

var aspectRatioPresets = []Preset{
	{Label: "정사각형", Value: "1:1"},
	{Label: "가로", Value: "16:9"},
	{Label: "세로", Value: "9:16"},
	{Label: "4:3", Value: "4:3"},
	{Label: "3:4", Value: "3:4"},
}

var catalog = map[Field][]Preset{
	FieldGender:      genderPresets,
	FieldNationality: nationalityPresets,
	FieldPose:        posePresets,
	FieldHair:        hairPresets,
	FieldTop:         topPresets,
	FieldBottom:      bottomPresets,
	FieldShoe:        shoePresets,
	FieldBackground:  backgroundPresets,
	FieldView:        viewPresets,
	FieldAspectRatio: aspectRatioPresets,
}

// All - 항목별 프리셋 전체 (호출자가 수정해도 원본은 그대로)
func All() map[Field][]Preset {
	out := make(map[Field][]Preset, len(catalog))
	for field := range catalog {
		out[field] = For(field)
	}
	return out
}

// For - 특정 항목의 프리셋
func For(field Field) []Preset {
	return append([]Preset(nil), catalog[field]...)
}

// Default - 항목의 첫 번째 프리셋 값
func Default(field Field) string {
	if presets := catalog[field]; len(presets) > 0 {
		return presets[0].Value
	}
	return ""
}

// AspectRatios - 생성 API 가 허용하는 비율 목록
func AspectRatios() []string {
	out := make([]string, 0, len(aspectRatioPresets))
	for _, p := range aspectRatioPresets {
		out = append(out, p.Value)
	}
	return out
}

// IsAspectRatio - 허용된 비율인지 확인
func IsAspectRatio(value string) bool {
	return slices.Contains(AspectRatios(), value)
}
